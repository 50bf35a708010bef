package ports

import "pipeline-bundles/internal/types"

// EnvironmentPort discovers the environment files of an installed
// configuration.
type EnvironmentPort interface {
	LoadEnvironments(configDir string) ([]types.Environment, error)
}
