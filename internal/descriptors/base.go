package descriptors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

const (
	// ManifestFileName is the marker whose presence means "local".
	ManifestFileName = "info.yml"
	// MetadataFileName is the registry metadata blob kept beside payloads.
	MetadataFileName = "registry_metadata.yml"

	stagingDirName   = "tmp"
	lockSuffix       = ".lock"
	lockRetryDelay   = 100 * time.Millisecond
	shortHashLength  = 7
	undefinedVersion = "Undefined"
)

// populateFunc writes a complete payload, manifest included, into staging.
type populateFunc func(ctx context.Context, staging string) error

// base carries the mechanics every cached backend shares: candidate paths,
// the local probe, manifest caching and atomic publishing.
type base struct {
	loc        types.Location
	roots      *types.CacheRoots
	deps       Dependencies
	backendDir string
	relative   string
	populate   populateFunc

	mu       sync.Mutex
	manifest *types.Manifest
}

func (b *base) init(loc types.Location, roots *types.CacheRoots, deps Dependencies, backendDir string, relative ...string) {
	b.loc = loc
	b.roots = roots
	b.deps = deps
	b.backendDir = backendDir
	b.relative = filepath.Join(relative...)
}

func (b *base) Location() types.Location {
	return types.NewLocation(b.loc.Kind, b.loc.Fields)
}

func (b *base) URI() string {
	return core.SerializeURI(b.loc)
}

func (b *base) Kind() types.Kind {
	return b.loc.Kind
}

func (b *base) Version() string {
	if version := b.loc.Version(); version != "" {
		return version
	}
	return undefinedVersion
}

func (b *base) CachePaths() []string {
	var out []string
	for _, root := range b.roots.All() {
		if root == "" {
			continue
		}
		out = append(out, filepath.Join(root, b.backendDir, b.relative))
	}
	return out
}

func (b *base) Path() string {
	candidates := b.CachePaths()
	for _, candidate := range candidates {
		if shared.FileExists(filepath.Join(candidate, ManifestFileName)) {
			return candidate
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

func (b *base) IsLocal() bool {
	for _, candidate := range b.CachePaths() {
		if shared.FileExists(filepath.Join(candidate, ManifestFileName)) {
			return true
		}
	}
	return false
}

func (b *base) EnsureLocal(ctx context.Context) error {
	if b.IsLocal() {
		return nil
	}
	return b.Fetch(ctx)
}

func (b *base) Fetch(ctx context.Context) error {
	if b.populate == nil {
		return core.FetchError(b.URI(), "backend cannot fetch payloads", nil)
	}
	return b.publish(ctx, b.populate)
}

func (b *base) IsImmutable() bool {
	return true
}

func (b *base) Manifest() (types.Manifest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.manifest != nil {
		return *b.manifest, nil
	}
	manifest, err := b.readManifest()
	if err != nil {
		return types.Manifest{}, err
	}
	b.manifest = &manifest
	return manifest, nil
}

func (b *base) readManifest() (types.Manifest, error) {
	if !b.IsLocal() {
		return types.Manifest{}, core.ManifestError(b.URI(), "payload is not local", nil)
	}
	manifest, err := b.deps.Manifests.ReadManifest(b.Path())
	if err != nil {
		return types.Manifest{}, core.ManifestError(b.URI(), "failed to read manifest", err)
	}
	return manifest, nil
}

func (b *base) CopyTo(ctx context.Context, dest string) error {
	if err := b.EnsureLocal(ctx); err != nil {
		return err
	}
	if err := shared.CopyTree(b.Path(), dest); err != nil {
		return core.FetchError(b.URI(), "failed to copy payload to "+dest, err)
	}
	return nil
}

func (b *base) Changelog(ctx context.Context) (string, string, error) {
	return "", "", nil
}

func (b *base) Deprecation(ctx context.Context) (bool, string, error) {
	return false, "", nil
}

// publish stages a payload and moves it under the primary root. Another
// process may publish the same target concurrently: the lock serialises
// cooperating writers, the local probe is repeated under the lock, an
// already populated target counts as success, and the manifest is written
// last so readers never see a partial payload as local.
func (b *base) publish(ctx context.Context, populate populateFunc) error {
	uri := b.URI()
	target := filepath.Join(b.roots.Primary(), b.backendDir, b.relative)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return core.FetchError(uri, "failed to create cache directory", err)
	}
	lock := flock.New(target + lockSuffix)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return core.FetchError(uri, "failed to lock cache path "+target, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("path", target).Msg("failed to release cache lock")
		}
	}()

	if b.IsLocal() {
		log.Debug().Str("uri", uri).Msg("payload already populated")
		return nil
	}

	staging := filepath.Join(b.roots.Primary(), stagingDirName, uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return core.FetchError(uri, "failed to create staging directory", err)
	}
	defer os.RemoveAll(staging)

	started := time.Now()
	if err := populate(ctx, staging); err != nil {
		var coded *core.Error
		if errors.As(err, &coded) {
			return err
		}
		return core.FetchError(uri, "failed to fetch payload", err)
	}
	if _, err := b.deps.Manifests.ReadManifest(staging); err != nil {
		return core.ManifestError(uri, "fetched payload has no readable manifest", err)
	}
	manifestData, err := os.ReadFile(filepath.Join(staging, ManifestFileName))
	if err != nil {
		return core.ManifestError(uri, "fetched payload has no readable manifest", err)
	}
	if err := os.Remove(filepath.Join(staging, ManifestFileName)); err != nil {
		return core.FetchError(uri, "failed to stage manifest", err)
	}

	if shared.DirExists(target) {
		log.Warn().Str("path", target).Msg("replacing partially written payload")
		if err := os.RemoveAll(target); err != nil {
			return core.FetchError(uri, "failed to remove partial payload", err)
		}
	}
	if err := shared.MoveTree(staging, target); err != nil {
		if b.IsLocal() {
			return nil
		}
		return core.FetchError(uri, "failed to move payload into "+target, err)
	}
	if err := shared.WriteFileAtomic(filepath.Join(target, ManifestFileName), manifestData); err != nil {
		return core.FetchError(uri, "failed to write manifest", err)
	}
	log.Info().
		Str("uri", uri).
		Str("path", target).
		Dur("duration", time.Since(started)).
		Msg("payload cached")
	return nil
}

func shortHash(commit string) string {
	if len(commit) <= shortHashLength {
		return commit
	}
	return commit[:shortHashLength]
}

func requireField(loc types.Location, field string) (string, error) {
	value := loc.Get(field)
	if value == "" {
		return "", core.LocatorError(loc.Key(), fmt.Sprintf("location of kind %s is missing %q", loc.Kind, field), nil)
	}
	return value, nil
}
