package configuration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

var placementFields = []string{"code", "project", "linux_path", "mac_path", "windows_path", "descriptor", "plugin_ids"}

// ResolveRequest selects a configuration. A nil ProjectID means the site
// configuration.
type ResolveRequest struct {
	ProjectID  *int
	ConfigName string
	Namespace  string
	// Fallback is used when no placement record applies.
	Fallback *types.Location
}

// Resolver turns a placement record into a configuration record. The
// precedence managed path > declared URI > fallback is fixed.
type Resolver struct {
	deps Dependencies
}

func NewResolver(deps Dependencies) Resolver {
	return Resolver{deps: deps}
}

func (r Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Record, error) {
	if strings.TrimSpace(req.ConfigName) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("configuration name is required")
	}
	placement, found, err := r.lookupPlacement(ctx, req)
	if err != nil {
		return nil, err
	}
	identity := Identity{
		ProjectID:          req.ProjectID,
		PipelineConfigName: req.ConfigName,
		Namespace:          req.Namespace,
	}
	if found {
		id := placement.ID
		identity.PipelineConfigID = &id
		if path := placementPath(placement, r.deps.goos()); path != "" {
			log.Info().Str("config", req.ConfigName).Str("path", path).Msg("using managed configuration")
			return NewManagedRecord(path, identity, r.deps), nil
		}
		if placement.Descriptor != "" {
			facade, err := r.deps.Registry.GetOrCreateURI(ctx, types.RoleConfiguration, placement.Descriptor, r.deps.Roots)
			if err != nil {
				return nil, err
			}
			return NewUnmanagedRecord(facade, identity, r.deps), nil
		}
	}
	if req.Fallback != nil {
		log.Info().Str("config", req.ConfigName).Str("uri", core.SerializeURI(*req.Fallback)).Msg("using fallback configuration")
		facade, err := r.deps.Registry.GetOrCreate(ctx, types.RoleConfiguration, *req.Fallback, r.deps.Roots)
		if err != nil {
			return nil, err
		}
		return NewUnmanagedRecord(facade, identity, r.deps), nil
	}
	return nil, core.NoConfigurationError(describeRequest(req), "no configuration applies to this project")
}

func (r Resolver) lookupPlacement(ctx context.Context, req ResolveRequest) (types.PlacementRecord, bool, error) {
	if r.deps.Service == nil {
		return types.PlacementRecord{}, false, nil
	}
	filters := []types.Filter{
		{Field: "code", Value: req.ConfigName},
		{Field: "project", Value: nil},
	}
	if req.ProjectID != nil {
		filters[1].Value = *req.ProjectID
	}
	record, err := r.deps.Service.FindOne(ctx, EntityPipelineConfiguration, filters, placementFields)
	if err != nil {
		return types.PlacementRecord{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to query pipeline configuration " + req.ConfigName).
			WithCause(err)
	}
	if record == nil {
		log.Debug().Str("config", req.ConfigName).Msg("no pipeline configuration record")
		return types.PlacementRecord{}, false, nil
	}
	return placementFromRecord(record), true, nil
}

func placementFromRecord(record types.ServiceRecord) types.PlacementRecord {
	placement := types.PlacementRecord{
		Code:        record.String("code"),
		LinuxPath:   record.String("linux_path"),
		MacPath:     record.String("mac_path"),
		WindowsPath: record.String("windows_path"),
		Descriptor:  strings.TrimSpace(record.String("descriptor")),
		PluginIDs:   record.String("plugin_ids"),
	}
	placement.ID, _ = record.Int("id")
	if project, ok := types.AsInt(record["project"]); ok {
		placement.ProjectID = &project
	}
	return placement
}

// placementPath returns the fixed path for goos, or "" when none is set.
func placementPath(placement types.PlacementRecord, goos string) string {
	var raw string
	switch goos {
	case "darwin":
		raw = placement.MacPath
	case "windows":
		raw = placement.WindowsPath
	default:
		raw = placement.LinuxPath
	}
	raw = strings.TrimSpace(os.ExpandEnv(raw))
	if raw == "" {
		return ""
	}
	return filepath.Clean(raw)
}

func describeRequest(req ResolveRequest) string {
	project := "site"
	if req.ProjectID != nil {
		project = fmt.Sprintf("project %d", *req.ProjectID)
	}
	return req.ConfigName + " for " + project
}
