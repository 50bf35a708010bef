package types

// EnvironmentItem is one engine, app or framework entry in an environment file.
type EnvironmentItem struct {
	Location map[string]string          `yaml:"location"`
	Apps     map[string]EnvironmentItem `yaml:"apps,omitempty"`
}

// Environment is the parsed form of one config/env/*.yml file.
type Environment struct {
	Name       string                     `yaml:"-"`
	Engines    map[string]EnvironmentItem `yaml:"engines,omitempty"`
	Frameworks map[string]EnvironmentItem `yaml:"frameworks,omitempty"`
}

// EnvironmentReference is a flattened location reference found while
// walking an environment.
type EnvironmentReference struct {
	Environment string
	Role        Role
	Name        string
	Location    map[string]string
}
