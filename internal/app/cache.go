package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

var knownRoles = map[types.Role]bool{
	types.RoleApplication:   true,
	types.RoleEngine:        true,
	types.RoleFramework:     true,
	types.RoleConfiguration: true,
	types.RoleCore:          true,
}

// Cache resolves one location, including a latest sentinel or version
// pattern, and makes its payload local.
func (s Service) Cache(ctx context.Context, req CacheRequest) (CacheResult, error) {
	role, err := parseRole(req.Role)
	if err != nil {
		return CacheResult{}, err
	}
	sess, err := s.newSession(req.Connection, req.Cache)
	if err != nil {
		return CacheResult{}, err
	}
	facade, err := sess.descriptors.GetOrCreateURI(ctx, role, strings.TrimSpace(req.URI), sess.roots)
	if err != nil {
		return CacheResult{}, err
	}
	fetched := !facade.IsLocal()
	if err := facade.EnsureLocal(ctx); err != nil {
		return CacheResult{}, err
	}
	log.Info().Str("uri", facade.URI()).Str("path", facade.Path()).Bool("fetched", fetched).Msg("cached")
	return CacheResult{URI: facade.URI(), Path: facade.Path(), Fetched: fetched}, nil
}

// Latest reports the newest concrete location matching pattern.
func (s Service) Latest(ctx context.Context, req LatestRequest) (LatestResult, error) {
	sess, err := s.newSession(req.Connection, req.Cache)
	if err != nil {
		return LatestResult{}, err
	}
	loc, err := core.ParseURI(strings.TrimSpace(req.URI))
	if err != nil {
		return LatestResult{}, err
	}
	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" && core.IsVersionPattern(loc.Version()) {
		pattern = loc.Version()
	}
	latest, err := sess.descriptors.Latest(ctx, types.RoleApplication, loc, sess.roots, pattern)
	if err != nil {
		return LatestResult{}, err
	}
	versions, err := latest.Versions(ctx)
	if err != nil {
		return LatestResult{}, err
	}
	return LatestResult{URI: latest.URI(), Version: latest.Version(), Versions: versions}, nil
}

func parseRole(value string) (types.Role, error) {
	role := types.Role(strings.ToLower(strings.TrimSpace(value)))
	if role == "" {
		return types.RoleApplication, nil
	}
	if !knownRoles[role] {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unknown role: " + value)
	}
	return role, nil
}
