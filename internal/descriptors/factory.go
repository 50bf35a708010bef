package descriptors

import (
	"fmt"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

// Constructor builds a backend for an already validated Location.
type Constructor func(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error)

// Factory maps every known kind onto its constructor. The mapping is fixed
// at construction.
type Factory struct {
	deps         Dependencies
	constructors map[types.Kind]Constructor
}

func NewFactory(deps Dependencies) *Factory {
	return &Factory{
		deps: deps,
		constructors: map[types.Kind]Constructor{
			types.KindAppStore:  newAppStoreBackend,
			types.KindGit:       newGitBackend,
			types.KindGitBranch: newGitBranchBackend,
			types.KindPath:      newPathBackend,
			types.KindDev:       newDevBackend,
			types.KindShotgun:   newShotgunBackend,
			types.KindManual:    newManualBackend,
		},
	}
}

// New validates loc against its kind and builds the backend.
func (f *Factory) New(loc types.Location, roots *types.CacheRoots) (Backend, error) {
	if roots == nil {
		return nil, core.LocatorError(loc.Key(), "cache roots are required", nil)
	}
	normalized, err := core.NormalizeLocation(loc)
	if err != nil {
		return nil, err
	}
	constructor, ok := f.constructors[normalized.Kind]
	if !ok {
		return nil, core.LocatorError(loc.Key(), fmt.Sprintf("no backend for kind %q", normalized.Kind), nil)
	}
	return constructor(normalized, roots, f.deps)
}

// NewFromURI parses uri and builds the backend.
func (f *Factory) NewFromURI(uri string, roots *types.CacheRoots) (Backend, error) {
	loc, err := core.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return f.New(loc, roots)
}
