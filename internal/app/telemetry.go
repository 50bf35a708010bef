package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/types"
)

const (
	EntityEventLogEntry = "EventLogEntry"
	bootstrapEventType  = "Pipeline_Bootstrap"
)

// recordBootstrapEvent reports a finished bootstrap. Failures are logged and
// never surface to the caller.
func (s Service) recordBootstrapEvent(ctx context.Context, sess *session, req BootstrapRequest, result BootstrapResult) {
	if sess.service == nil {
		return
	}
	event := types.ServiceRecord{
		"event_id":    uuid.NewString(),
		"event_type":  bootstrapEventType,
		"description": fmt.Sprintf("Bootstrapped %s (%s)", req.ConfigName, result.Action),
		"meta": map[string]any{
			"config":         req.ConfigName,
			"uri":            result.URI,
			"initial_status": string(result.InitialStatus),
			"fetched":        result.Dependencies.Fetched,
			"managed":        result.Layout.Managed,
		},
		"created_at": timeNow(s.Clock).Format(time.RFC3339),
	}
	if req.ProjectID != nil {
		event["project"] = map[string]any{"type": "Project", "id": *req.ProjectID}
	}
	if err := sess.service.CreateEvent(ctx, event); err != nil {
		log.Warn().Err(err).Msg("failed to record bootstrap event")
	}
}
