// Package descriptors resolves bundle Locations into backends that can
// fetch, cache and describe one payload each.
package descriptors

import (
	"context"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/types"
)

// Backend is one payload bound to one Location and one CacheRoots set.
type Backend interface {
	Location() types.Location
	URI() string
	Kind() types.Kind
	// SystemName is the filesystem-safe bundle name.
	SystemName() string
	Version() string
	// CachePaths lists candidate payload directories, primary root first.
	CachePaths() []string
	// Path is the first local candidate, or the primary candidate.
	Path() string
	IsLocal() bool
	// EnsureLocal fetches only when no candidate path holds the payload.
	EnsureLocal(ctx context.Context) error
	// Fetch writes the payload under the primary root.
	Fetch(ctx context.Context) error
	// Latest returns a new backend bound to the newest version matching
	// pattern; an empty pattern means no constraint. It never mutates the
	// receiver.
	Latest(ctx context.Context, pattern string) (Backend, error)
	Versions(ctx context.Context) ([]string, error)
	CopyTo(ctx context.Context, dest string) error
	Manifest() (types.Manifest, error)
	IsImmutable() bool
	// Changelog returns release notes text and a documentation url.
	Changelog(ctx context.Context) (string, string, error)
	// Deprecation reports whether the bundle is deprecated and why.
	Deprecation(ctx context.Context) (bool, string, error)
}

// Dependencies are the collaborators backends talk to. Retry applies to
// remote attachment downloads only.
type Dependencies struct {
	Service   ports.RegistryServicePort
	VCS       ports.SourceControlPort
	Manifests ports.ManifestPort
	Archive   ports.ArchivePort
	Retry     RetryPolicy
}

func (d Dependencies) service(uri string) (ports.RegistryServicePort, error) {
	if d.Service == nil {
		return nil, core.FetchError(uri, "no registry service configured", nil)
	}
	return d.Service, nil
}

func (d Dependencies) vcs(uri string) (ports.SourceControlPort, error) {
	if d.VCS == nil {
		return nil, core.FetchError(uri, "no source control client configured", nil)
	}
	return d.VCS, nil
}
