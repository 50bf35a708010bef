package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/configuration"
	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/policies"
	"pipeline-bundles/internal/types"
)

const (
	ActionNone      = "none"
	ActionInstalled = "installed"
	ActionUpdated   = "updated"
)

// Bootstrap resolves the configuration for a project, brings it up to date,
// and caches every dependency its environments declare.
func (s Service) Bootstrap(ctx context.Context, req BootstrapRequest) (BootstrapResult, error) {
	policy, err := policies.NewDependencyFailurePolicy(req.FailureMode)
	if err != nil {
		return BootstrapResult{}, err
	}
	sess, err := s.newSession(req.Connection, req.Cache)
	if err != nil {
		return BootstrapResult{}, err
	}
	record, err := resolveRecord(ctx, sess, req.ProjectID, req.ConfigName, req.Namespace, req.FallbackURI)
	if err != nil {
		return BootstrapResult{}, err
	}

	status := record.Status()
	log.Info().
		Str("config", req.ConfigName).
		Str("install_root", record.InstallRoot()).
		Str("status", string(status)).
		Msg("configuration status")
	action := ActionNone
	switch status {
	case types.ConfigStatusMissing:
		if err := record.EnsureScaffold(); err != nil {
			return BootstrapResult{}, err
		}
		if err := record.UpdateConfiguration(ctx); err != nil {
			return BootstrapResult{}, err
		}
		action = ActionInstalled
	case types.ConfigStatusOld, types.ConfigStatusInvalid:
		if _, err := record.MoveToBackup(); err != nil {
			return BootstrapResult{}, err
		}
		if err := record.EnsureScaffold(); err != nil {
			return BootstrapResult{}, err
		}
		if err := record.UpdateConfiguration(ctx); err != nil {
			return BootstrapResult{}, err
		}
		action = ActionUpdated
	}

	result := BootstrapResult{
		InitialStatus: status,
		Action:        action,
		Layout:        record.RuntimeLayout(),
	}
	if descriptor := record.Descriptor(); descriptor != nil {
		result.URI = descriptor.URI()
	}
	report, err := s.cacheDependencies(ctx, sess, record.Layout().ConfigDir(), policy)
	result.Dependencies = report
	if err != nil {
		return result, err
	}
	if req.Telemetry {
		s.recordBootstrapEvent(ctx, sess, req, result)
	}
	return result, nil
}

func resolveRecord(ctx context.Context, sess *session, projectID *int, name string, namespace string, fallbackURI string) (*configuration.Record, error) {
	request := configuration.ResolveRequest{
		ProjectID:  projectID,
		ConfigName: name,
		Namespace:  namespace,
	}
	if uri := strings.TrimSpace(fallbackURI); uri != "" {
		loc, err := core.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		request.Fallback = &loc
	}
	return configuration.NewResolver(sess.config).Resolve(ctx, request)
}
