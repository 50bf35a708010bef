package types

import "time"

// InstallLocation records where a configuration lives on each platform.
type InstallLocation struct {
	Linux   string `yaml:"linux"`
	Mac     string `yaml:"mac"`
	Windows string `yaml:"windows"`
}

// ConfigInfo is the provenance side-car used by status computation.
type ConfigInfo struct {
	FormatGeneration int               `yaml:"format_generation"`
	SourceURI        string            `yaml:"source_uri"`
	Source           map[string]string `yaml:"source"`
	InstalledAt      string            `yaml:"installed_at,omitempty"`
}

// InstalledTime parses InstalledAt, which is written as RFC3339.
func (c ConfigInfo) InstalledTime() (time.Time, bool) {
	parsed, err := time.Parse(time.RFC3339, c.InstalledAt)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

// ServiceConnection records the registry service host the configuration
// was installed from.
type ServiceConnection struct {
	Host      string `yaml:"host"`
	HTTPProxy string `yaml:"http_proxy,omitempty"`
}

// PipelineIdentity names the project and pipeline configuration.
type PipelineIdentity struct {
	ProjectID          *int   `yaml:"project_id"`
	PipelineConfigID   *int   `yaml:"pc_id"`
	PipelineConfigName string `yaml:"pc_name"`
	Namespace          string `yaml:"namespace,omitempty"`
}

// StorageRoot is one named storage root with per-platform paths.
type StorageRoot struct {
	LinuxPath   string `yaml:"linux_path,omitempty"`
	MacPath     string `yaml:"mac_path,omitempty"`
	WindowsPath string `yaml:"windows_path,omitempty"`
	Default     bool   `yaml:"default,omitempty"`
}
