package app

import (
	"time"

	"pipeline-bundles/internal/types"
)

// Connection selects the registry service. Snapshot, when set, serves the
// registry from a local YAML document instead of Endpoint.
type Connection struct {
	Endpoint   string
	APIKey     string
	HTTPProxy  string
	TimeoutSec int
	Snapshot   string
}

// CacheSettings are the cache roots of one session. Only Primary is written.
type CacheSettings struct {
	Primary   string
	Fallbacks []string
}

type BootstrapRequest struct {
	Connection
	Cache       CacheSettings
	ProjectID   *int
	ConfigName  string
	Namespace   string
	FallbackURI string
	// FailureMode is "abort" (default) or "aggregate".
	FailureMode string
	Telemetry   bool
}

type BootstrapResult struct {
	InitialStatus types.ConfigStatus
	Action        string
	Layout        types.RuntimeLayout
	URI           string
	Dependencies  DependencyReport
}

// DependencyReport counts environment references visited while caching.
type DependencyReport struct {
	Checked int
	Fetched int
	Failed  int
}

type StatusRequest struct {
	Connection
	Cache       CacheSettings
	ProjectID   *int
	ConfigName  string
	Namespace   string
	FallbackURI string
}

type StatusResult struct {
	Status      types.ConfigStatus
	InstallRoot string
	Managed     bool
	URI         string
	// InstalledAt is zero when nothing is installed or the record is managed.
	InstalledAt time.Time
}

type CacheRequest struct {
	Connection
	Cache CacheSettings
	URI   string
	Role  string
}

type CacheResult struct {
	URI     string
	Path    string
	Fetched bool
}

type LatestRequest struct {
	Connection
	Cache   CacheSettings
	URI     string
	Pattern string
}

type LatestResult struct {
	URI      string
	Version  string
	Versions []string
}

type UploadRequest struct {
	Connection
	SourceDir  string
	EntityType string
	EntityID   int
	Field      string
	Filename   string
}

type UploadResult struct {
	AttachmentID int
	URI          string
	Size         int
}
