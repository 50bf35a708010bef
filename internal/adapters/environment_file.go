package adapters

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/types"
)

// EnvironmentFileAdapter reads config/env/*.yml.
type EnvironmentFileAdapter struct{}

func NewEnvironmentFileAdapter() EnvironmentFileAdapter {
	return EnvironmentFileAdapter{}
}

func (a EnvironmentFileAdapter) LoadEnvironments(configDir string) ([]types.Environment, error) {
	envDir := filepath.Join(configDir, "env")
	entries, err := os.ReadDir(envDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list environments").
			WithCause(err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext := filepath.Ext(entry.Name()); ext == ".yml" || ext == ".yaml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	var out []types.Environment
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(envDir, name))
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read environment " + name).
				WithCause(err)
		}
		var env types.Environment
		if err := yaml.Unmarshal(data, &env); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to parse environment " + name).
				WithCause(err)
		}
		env.Name = strings.TrimSuffix(name, filepath.Ext(name))
		out = append(out, env)
	}
	return out, nil
}

var _ ports.EnvironmentPort = EnvironmentFileAdapter{}
