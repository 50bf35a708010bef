package app

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pipeline-bundles/internal/adapters"
	"pipeline-bundles/internal/configuration"
	"pipeline-bundles/internal/descriptors"
	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/types"
)

// session holds everything one use case shares: one registry service, one
// set of cache roots and the descriptor registry keyed by them.
type session struct {
	service     ports.RegistryServicePort
	roots       *types.CacheRoots
	descriptors *descriptors.Registry
	config      configuration.Dependencies
}

func (s Service) newSession(conn Connection, cache CacheSettings) (*session, error) {
	primary := strings.TrimSpace(cache.Primary)
	if primary == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("cache root is required")
	}
	service, err := s.registryService(conn)
	if err != nil {
		return nil, err
	}
	deps := descriptors.Dependencies{
		VCS:       s.SourceControl,
		Manifests: s.Manifests,
		Archive:   s.Archive,
		Retry:     s.Retry,
	}
	if service != nil {
		deps.Service = service
	}
	roots := types.NewCacheRoots(primary, cache.Fallbacks)
	registry := descriptors.NewRegistry(descriptors.NewFactory(deps))
	return &session{
		service:     service,
		roots:       roots,
		descriptors: registry,
		config: configuration.Dependencies{
			Registry:  registry,
			Roots:     roots,
			Sidecars:  s.Sidecars,
			Service:   service,
			HTTPProxy: conn.HTTPProxy,
			Clock:     s.Clock,
			GOOS:      s.GOOS,
		},
	}, nil
}

// registryService returns nil when no registry is configured; offline
// sessions can still resolve local and git locations.
func (s Service) registryService(conn Connection) (ports.RegistryServicePort, error) {
	if s.RegistryService != nil {
		return s.RegistryService, nil
	}
	snapshot := strings.TrimSpace(conn.Snapshot)
	endpoint := strings.TrimSpace(conn.Endpoint)
	switch {
	case snapshot != "" && endpoint != "":
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("registry url and registry snapshot are mutually exclusive")
	case snapshot != "":
		return adapters.NewRegistrySnapshotAdapter(snapshot), nil
	case endpoint != "":
		return adapters.NewRegistryHTTPAdapter(endpoint, conn.APIKey, conn.HTTPProxy, conn.TimeoutSec), nil
	default:
		return nil, nil
	}
}

func (s Service) requireRegistryService(conn Connection) (ports.RegistryServicePort, error) {
	service, err := s.registryService(conn)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("a registry url or snapshot is required")
	}
	return service, nil
}
