package app

import (
	"time"

	"pipeline-bundles/internal/adapters"
	"pipeline-bundles/internal/descriptors"
	"pipeline-bundles/internal/ports"
)

// Service runs the use cases. RegistryService, when set, replaces the
// registry adapter normally built from each request's Connection.
type Service struct {
	RegistryService ports.RegistryServicePort
	SourceControl   ports.SourceControlPort
	Manifests       ports.ManifestPort
	Archive         ports.ArchivePort
	Sidecars        ports.SidecarPort
	Environments    ports.EnvironmentPort
	Retry           descriptors.RetryPolicy
	Clock           func() time.Time
	// GOOS overrides the platform used for paths and entry points.
	GOOS string
}

func NewService() Service {
	return Service{
		SourceControl: adapters.NewGitClientAdapter(),
		Manifests:     adapters.NewManifestFileAdapter(),
		Archive:       adapters.NewTarArchiveAdapter(),
		Sidecars:      adapters.NewSidecarFileAdapter(),
		Environments:  adapters.NewEnvironmentFileAdapter(),
		Retry:         descriptors.AttachmentRetryPolicy(),
		Clock:         time.Now,
	}
}

func timeNow(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}
