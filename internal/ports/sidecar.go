package ports

import "pipeline-bundles/internal/types"

// SidecarPort reads and writes the provenance documents stored under an
// installed configuration's config/core directory.
type SidecarPort interface {
	ReadConfigInfo(coreDir string) (types.ConfigInfo, error)
	WriteConfigInfo(coreDir string, info types.ConfigInfo) error
	WriteInstallLocation(coreDir string, location types.InstallLocation) error
	WriteServiceConnection(coreDir string, connection types.ServiceConnection) error
	WritePipelineIdentity(coreDir string, identity types.PipelineIdentity) error
	WriteStorageRoots(coreDir string, roots map[string]types.StorageRoot) error
}
