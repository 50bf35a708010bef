package adapters

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

const (
	InstallLocationFile   = "install_location.yml"
	ConfigInfoFile        = "config_info.yml"
	ServiceConnectionFile = "service_connection.yml"
	PipelineIdentityFile  = "pipeline_configuration.yml"
	StorageRootsFile      = "roots.yml"
)

// SidecarFileAdapter stores side-car documents as YAML files.
type SidecarFileAdapter struct{}

func NewSidecarFileAdapter() SidecarFileAdapter {
	return SidecarFileAdapter{}
}

func (a SidecarFileAdapter) ReadConfigInfo(coreDir string) (types.ConfigInfo, error) {
	data, err := os.ReadFile(filepath.Join(coreDir, ConfigInfoFile))
	if err != nil {
		return types.ConfigInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("config info not found").
			WithCause(err)
	}
	var info types.ConfigInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return types.ConfigInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse config info").
			WithCause(err)
	}
	if info.FormatGeneration == 0 || info.SourceURI == "" {
		return types.ConfigInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("config info is incomplete")
	}
	return info, nil
}

func (a SidecarFileAdapter) WriteConfigInfo(coreDir string, info types.ConfigInfo) error {
	return a.write(coreDir, ConfigInfoFile, info)
}

func (a SidecarFileAdapter) WriteInstallLocation(coreDir string, location types.InstallLocation) error {
	return a.write(coreDir, InstallLocationFile, location)
}

func (a SidecarFileAdapter) WriteServiceConnection(coreDir string, connection types.ServiceConnection) error {
	return a.write(coreDir, ServiceConnectionFile, connection)
}

func (a SidecarFileAdapter) WritePipelineIdentity(coreDir string, identity types.PipelineIdentity) error {
	return a.write(coreDir, PipelineIdentityFile, identity)
}

func (a SidecarFileAdapter) WriteStorageRoots(coreDir string, roots map[string]types.StorageRoot) error {
	if roots == nil {
		roots = map[string]types.StorageRoot{}
	}
	return a.write(coreDir, StorageRootsFile, roots)
}

func (a SidecarFileAdapter) write(coreDir string, name string, value any) error {
	if coreDir == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("side-car directory is empty")
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode " + name).
			WithCause(err)
	}
	return shared.WriteFileAtomic(filepath.Join(coreDir, name), data)
}

var _ ports.SidecarPort = SidecarFileAdapter{}
