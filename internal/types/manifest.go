package types

// FrameworkRequirement is a framework a bundle declares it needs.
type FrameworkRequirement struct {
	Name           string `yaml:"name"`
	Version        string `yaml:"version"`
	MinimumVersion string `yaml:"minimum_version,omitempty"`
}

// Manifest is the info.yml document shipped with every payload. It
// describes behaviour and never takes part in version identity.
type Manifest struct {
	DisplayName         string                    `yaml:"display_name,omitempty"`
	Description         string                    `yaml:"description,omitempty"`
	DocumentationURL    string                    `yaml:"documentation_url,omitempty"`
	RequiresCoreVersion string                    `yaml:"requires_core_version,omitempty"`
	Frameworks          []FrameworkRequirement    `yaml:"frameworks,omitempty"`
	SupportedEngines    []string                  `yaml:"supported_engines,omitempty"`
	SupportedPlatforms  []string                  `yaml:"supported_platforms,omitempty"`
	Configuration       map[string]map[string]any `yaml:"configuration,omitempty"`

	// Core and StorageRoots are only meaningful for configurations.
	Core         map[string]string `yaml:"core,omitempty"`
	StorageRoots []string          `yaml:"storage_roots,omitempty"`
}

// RegistryMetadata is the opaque blob cached beside a registry payload.
type RegistryMetadata struct {
	BundleID     int    `yaml:"bundle_id"`
	VersionID    int    `yaml:"version_id"`
	AttachmentID int    `yaml:"attachment_id"`
	Deprecated   bool   `yaml:"deprecated"`
	Message      string `yaml:"deprecation_message,omitempty"`
	Changelog    string `yaml:"changelog,omitempty"`
	ReleaseNotes string `yaml:"release_notes_url,omitempty"`
}
