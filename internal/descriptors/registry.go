package descriptors

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

type backendKey struct {
	roots    *types.CacheRoots
	location string
}

type facadeKey struct {
	backendKey
	role types.Role
}

// Registry memoizes backends per (CacheRoots identity, Location) and
// facades per role on top of them, for the lifetime of the Registry. It
// coordinates goroutines of one process only.
type Registry struct {
	factory *Factory

	mu       sync.Mutex
	backends map[backendKey]Backend
	facades  map[facadeKey]*Facade
	group    singleflight.Group
}

func NewRegistry(factory *Factory) *Registry {
	return &Registry{
		factory:  factory,
		backends: map[backendKey]Backend{},
		facades:  map[facadeKey]*Facade{},
	}
}

// GetOrCreate returns the shared facade for loc. A "latest" or wildcard
// version is resolved first; only concrete Locations become keys.
func (r *Registry) GetOrCreate(ctx context.Context, role types.Role, loc types.Location, roots *types.CacheRoots) (*Facade, error) {
	if roots == nil {
		return nil, core.LocatorError(loc.Key(), "cache roots are required", nil)
	}
	normalized, err := core.NormalizeLocation(loc)
	if err != nil {
		return nil, err
	}
	var resolved Backend
	if pattern, ok := resolutionPattern(normalized.Version()); ok {
		resolved, err = r.resolve(ctx, normalized, roots, pattern)
		if err != nil {
			return nil, err
		}
		normalized = resolved.Location()
	}
	return r.intern(role, normalized, roots, resolved)
}

// GetOrCreateURI parses uri and calls GetOrCreate.
func (r *Registry) GetOrCreateURI(ctx context.Context, role types.Role, uri string, roots *types.CacheRoots) (*Facade, error) {
	loc, err := core.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return r.GetOrCreate(ctx, role, loc, roots)
}

// Latest resolves the newest version of loc matching pattern and returns
// the shared facade for it.
func (r *Registry) Latest(ctx context.Context, role types.Role, loc types.Location, roots *types.CacheRoots, pattern string) (*Facade, error) {
	if roots == nil {
		return nil, core.LocatorError(loc.Key(), "cache roots are required", nil)
	}
	normalized, err := core.NormalizeLocation(loc)
	if err != nil {
		return nil, err
	}
	resolved, err := r.resolve(ctx, normalized, roots, pattern)
	if err != nil {
		return nil, err
	}
	return r.intern(role, resolved.Location(), roots, resolved)
}

func (r *Registry) resolve(ctx context.Context, loc types.Location, roots *types.CacheRoots, pattern string) (Backend, error) {
	backend, err := r.factory.New(loc, roots)
	if err != nil {
		return nil, err
	}
	resolved, err := backend.Latest(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if _, unresolved := resolutionPattern(resolved.Location().Version()); unresolved {
		return nil, core.LocatorError(
			resolved.URI(),
			fmt.Sprintf("location of kind %s cannot resolve version %q", resolved.Kind(), resolved.Location().Version()),
			nil,
		)
	}
	log.Debug().
		Str("from", backend.URI()).
		Str("to", resolved.URI()).
		Msg("resolved version")
	return resolved, nil
}

func (r *Registry) intern(role types.Role, loc types.Location, roots *types.CacheRoots, candidate Backend) (*Facade, error) {
	bkey := backendKey{roots: roots, location: loc.Key()}
	fkey := facadeKey{backendKey: bkey, role: role}

	r.mu.Lock()
	if facade, ok := r.facades[fkey]; ok {
		r.mu.Unlock()
		return facade, nil
	}
	r.mu.Unlock()

	flightKey := fmt.Sprintf("%p|%s|%s", roots, role, bkey.location)
	value, err, _ := r.group.Do(flightKey, func() (any, error) {
		r.mu.Lock()
		if facade, ok := r.facades[fkey]; ok {
			r.mu.Unlock()
			return facade, nil
		}
		backend, ok := r.backends[bkey]
		r.mu.Unlock()

		if !ok {
			backend = candidate
			if backend == nil {
				built, err := r.factory.New(loc, roots)
				if err != nil {
					return nil, err
				}
				backend = built
			}
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.backends[bkey]; ok {
			backend = existing
		} else {
			r.backends[bkey] = backend
		}
		facade, ok := r.facades[fkey]
		if !ok {
			facade = NewFacade(role, backend)
			r.facades[fkey] = facade
		}
		return facade, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Facade), nil
}

// resolutionPattern maps a version field onto the pattern Latest needs:
// the sentinel becomes an unconstrained lookup.
func resolutionPattern(version string) (string, bool) {
	switch {
	case version == core.LatestSentinel:
		return "", true
	case core.IsVersionPattern(version):
		return version, true
	default:
		return "", false
	}
}
