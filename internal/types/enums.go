package types

// Kind identifies the backend family a Location resolves through.
type Kind string

const (
	KindAppStore  Kind = "app_store"
	KindGit       Kind = "git"
	KindGitBranch Kind = "git_branch"
	KindPath      Kind = "path"
	KindDev       Kind = "dev"
	KindShotgun   Kind = "shotgun"
	KindManual    Kind = "manual"
)

// Role is the domain meaning of a descriptor within a pipeline.
type Role string

const (
	RoleApplication   Role = "application"
	RoleEngine        Role = "engine"
	RoleFramework     Role = "framework"
	RoleConfiguration Role = "configuration"
	RoleCore          Role = "core"
)

// ConfigStatus is the lifecycle state of an installed configuration.
type ConfigStatus string

const (
	ConfigStatusMissing  ConfigStatus = "MISSING"
	ConfigStatusInvalid  ConfigStatus = "INVALID"
	ConfigStatusOld      ConfigStatus = "OLD"
	ConfigStatusUpToDate ConfigStatus = "UP_TO_DATE"
)

// DependencyFailureMode controls how dependency caching reacts to errors.
type DependencyFailureMode string

const (
	DependencyFailureAbort     DependencyFailureMode = "abort"
	DependencyFailureAggregate DependencyFailureMode = "aggregate"
)
