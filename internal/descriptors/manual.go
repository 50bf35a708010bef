package descriptors

import (
	"context"

	"pipeline-bundles/internal/types"
)

const manualDir = "manual"

// manualBackend is a payload placed in the cache by something else. It is
// never fetched.
type manualBackend struct {
	base
	name string
}

func newManualBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error) {
	name, err := requireField(loc, "name")
	if err != nil {
		return nil, err
	}
	version, err := requireField(loc, "version")
	if err != nil {
		return nil, err
	}
	b := &manualBackend{name: name}
	b.init(loc, roots, deps, manualDir, name, version)
	return b, nil
}

func (b *manualBackend) SystemName() string {
	return b.name
}

func (b *manualBackend) Latest(ctx context.Context, pattern string) (Backend, error) {
	return b, nil
}

func (b *manualBackend) Versions(ctx context.Context) ([]string, error) {
	return []string{b.Version()}, nil
}
