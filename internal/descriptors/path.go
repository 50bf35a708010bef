package descriptors

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

// pathBackend is a payload living at a fixed local path. The dev kind is
// mutable: its manifest is re-read on every access.
type pathBackend struct {
	base
	path    string
	mutable bool
}

func newPathBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error) {
	return newLocalBackend(loc, roots, deps, false)
}

func newDevBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error) {
	return newLocalBackend(loc, roots, deps, true)
}

func newLocalBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies, mutable bool) (Backend, error) {
	path := ResolveLocalPath(loc, runtime.GOOS)
	if path == "" {
		return nil, core.LocatorError(core.SerializeURI(loc), "location has no path for platform "+runtime.GOOS, nil)
	}
	b := &pathBackend{path: path, mutable: mutable}
	b.init(loc, roots, deps, "")
	return b, nil
}

// ResolveLocalPath returns the path field, or the field for goos when the
// cross-platform one is absent, with "~" and environment variables expanded.
func ResolveLocalPath(loc types.Location, goos string) string {
	raw := loc.Get("path")
	if raw == "" {
		raw = loc.Get(PlatformPathField(goos))
	}
	if raw == "" {
		return ""
	}
	expanded := os.ExpandEnv(raw)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") || strings.HasPrefix(expanded, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, expanded[1:])
		}
	}
	return filepath.Clean(expanded)
}

// PlatformPathField maps a GOOS value onto the per-platform field name.
func PlatformPathField(goos string) string {
	switch goos {
	case "darwin":
		return "mac_path"
	case "windows":
		return "windows_path"
	default:
		return "linux_path"
	}
}

func (b *pathBackend) SystemName() string {
	if name := b.loc.Get("name"); name != "" {
		return name
	}
	return filepath.Base(b.path)
}

func (b *pathBackend) CachePaths() []string {
	return []string{b.path}
}

func (b *pathBackend) Path() string {
	return b.path
}

func (b *pathBackend) IsLocal() bool {
	return true
}

func (b *pathBackend) EnsureLocal(ctx context.Context) error {
	return nil
}

func (b *pathBackend) Fetch(ctx context.Context) error {
	return nil
}

func (b *pathBackend) IsImmutable() bool {
	return !b.mutable
}

func (b *pathBackend) Latest(ctx context.Context, pattern string) (Backend, error) {
	return b, nil
}

func (b *pathBackend) Versions(ctx context.Context) ([]string, error) {
	return []string{b.Version()}, nil
}

func (b *pathBackend) Manifest() (types.Manifest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.manifest != nil && !b.mutable {
		return *b.manifest, nil
	}
	manifest, err := b.deps.Manifests.ReadManifest(b.path)
	if err != nil {
		return types.Manifest{}, core.ManifestError(b.URI(), "failed to read manifest", err)
	}
	if !b.mutable {
		b.manifest = &manifest
	}
	return manifest, nil
}

func (b *pathBackend) CopyTo(ctx context.Context, dest string) error {
	if err := shared.CopyTree(b.path, dest); err != nil {
		return core.FetchError(b.URI(), "failed to copy payload to "+dest, err)
	}
	return nil
}
