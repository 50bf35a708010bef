package types

// ServiceRecord is a raw field map returned by the registry service.
type ServiceRecord map[string]any

// Filter is a single field equality condition for a service query.
type Filter struct {
	Field string
	Value any
}

// PlacementRecord is the pipeline configuration record that tells the
// resolver where a configuration lives.
type PlacementRecord struct {
	ID          int
	Code        string
	ProjectID   *int
	LinuxPath   string
	MacPath     string
	WindowsPath string
	Descriptor  string
	PluginIDs   string
}

// RuntimeLayout is what the out-of-scope runtime loader consumes once a
// configuration is up to date.
type RuntimeLayout struct {
	InstallRoot string
	ConfigPath  string
	CorePath    string
	EntryPoints []string
	Managed     bool
}
