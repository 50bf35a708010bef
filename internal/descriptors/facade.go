package descriptors

import (
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

// Facade gives a backend its domain role and exposes manifest-derived
// accessors. It holds no state of its own.
type Facade struct {
	Backend
	role types.Role
}

func NewFacade(role types.Role, backend Backend) *Facade {
	return &Facade{Backend: backend, role: role}
}

func (f *Facade) Role() types.Role {
	return f.role
}

func (f *Facade) DisplayName() string {
	manifest, err := f.Manifest()
	if err != nil || manifest.DisplayName == "" {
		return f.SystemName()
	}
	return manifest.DisplayName
}

func (f *Facade) Description() string {
	manifest, err := f.Manifest()
	if err != nil || manifest.Description == "" {
		return "No description available."
	}
	return manifest.Description
}

func (f *Facade) DocumentationURL() string {
	manifest, err := f.Manifest()
	if err != nil {
		return ""
	}
	return manifest.DocumentationURL
}

func (f *Facade) RequiredFrameworks() ([]types.FrameworkRequirement, error) {
	manifest, err := f.Manifest()
	if err != nil {
		return nil, err
	}
	return manifest.Frameworks, nil
}

func (f *Facade) MinimumCoreVersion() (string, error) {
	manifest, err := f.Manifest()
	if err != nil {
		return "", err
	}
	return manifest.RequiresCoreVersion, nil
}

func (f *Facade) SupportedEngines() ([]string, error) {
	manifest, err := f.Manifest()
	if err != nil {
		return nil, err
	}
	return manifest.SupportedEngines, nil
}

func (f *Facade) SupportedPlatforms() ([]string, error) {
	manifest, err := f.Manifest()
	if err != nil {
		return nil, err
	}
	return manifest.SupportedPlatforms, nil
}

// SupportsCurrentPlatform is true when the manifest lists no platforms or
// lists the running one.
func (f *Facade) SupportsCurrentPlatform() (bool, error) {
	return f.SupportsPlatform(runtime.GOOS)
}

func (f *Facade) SupportsPlatform(goos string) (bool, error) {
	platforms, err := f.SupportedPlatforms()
	if err != nil {
		return false, err
	}
	if len(platforms) == 0 {
		return true, nil
	}
	want := platformName(goos)
	for _, platform := range platforms {
		if strings.EqualFold(strings.TrimSpace(platform), want) {
			return true, nil
		}
	}
	return false, nil
}

func (f *Facade) ConfigurationSchema() (map[string]map[string]any, error) {
	manifest, err := f.Manifest()
	if err != nil {
		return nil, err
	}
	if manifest.Configuration == nil {
		return map[string]map[string]any{}, nil
	}
	return manifest.Configuration, nil
}

// DeclaredCore returns the core Location a configuration manifest pins, or
// false when it declares none.
func (f *Facade) DeclaredCore() (types.Location, bool, error) {
	manifest, err := f.Manifest()
	if err != nil {
		return types.Location{}, false, err
	}
	if len(manifest.Core) == 0 {
		return types.Location{}, false, nil
	}
	loc, err := core.LocationFromMap(manifest.Core)
	if err != nil {
		return types.Location{}, false, err
	}
	return loc, true, nil
}

// CheckCoreCompatibility fails when coreVersion is older than the
// manifest's requires_core_version. Unparseable versions are not judged.
func (f *Facade) CheckCoreCompatibility(coreVersion string) error {
	required, err := f.MinimumCoreVersion()
	if err != nil {
		return err
	}
	if strings.TrimSpace(required) == "" {
		return nil
	}
	want, err := semver.NewVersion(required)
	if err != nil {
		return nil
	}
	have, err := semver.NewVersion(coreVersion)
	if err != nil {
		return nil
	}
	if have.LessThan(want) {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(f.SystemName() + " requires core " + required + " but " + coreVersion + " is installed")
	}
	return nil
}

func platformName(goos string) string {
	switch goos {
	case "darwin":
		return "mac"
	default:
		return goos
	}
}
