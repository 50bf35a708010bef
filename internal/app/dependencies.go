package app

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/policies"
	"pipeline-bundles/internal/types"
)

// cacheDependencies ensures every location referenced by the installed
// environments is local. Already local payloads are not fetched again.
func (s Service) cacheDependencies(ctx context.Context, sess *session, configDir string, policy *policies.DependencyFailurePolicy) (DependencyReport, error) {
	environments, err := s.Environments.LoadEnvironments(configDir)
	if err != nil {
		return DependencyReport{}, err
	}
	report := DependencyReport{}
	for _, ref := range FlattenEnvironments(environments) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		fetched, err := ensureReference(ctx, sess, ref)
		if fetched {
			report.Fetched++
		}
		if err != nil {
			report.Failed++
			if stop := policy.Handle(ref, err); stop != nil {
				return report, stop
			}
		}
	}
	log.Info().
		Int("checked", report.Checked).
		Int("fetched", report.Fetched).
		Int("failed", report.Failed).
		Msg("dependencies cached")
	return report, policy.Err()
}

func ensureReference(ctx context.Context, sess *session, ref types.EnvironmentReference) (bool, error) {
	loc, err := core.LocationFromMap(ref.Location)
	if err != nil {
		return false, err
	}
	facade, err := sess.descriptors.GetOrCreate(ctx, ref.Role, loc, sess.roots)
	if err != nil {
		return false, err
	}
	if facade.IsLocal() {
		log.Debug().Str("uri", facade.URI()).Msg("dependency already local")
		return false, nil
	}
	if err := facade.EnsureLocal(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// FlattenEnvironments lists every engine, engine app and framework
// location in a stable order.
func FlattenEnvironments(environments []types.Environment) []types.EnvironmentReference {
	var out []types.EnvironmentReference
	for _, env := range environments {
		for _, engineName := range sortedKeys(env.Engines) {
			engine := env.Engines[engineName]
			if len(engine.Location) > 0 {
				out = append(out, types.EnvironmentReference{Environment: env.Name, Role: types.RoleEngine, Name: engineName, Location: engine.Location})
			}
			for _, appName := range sortedKeys(engine.Apps) {
				app := engine.Apps[appName]
				if len(app.Location) == 0 {
					continue
				}
				out = append(out, types.EnvironmentReference{Environment: env.Name, Role: types.RoleApplication, Name: engineName + "/" + appName, Location: app.Location})
			}
		}
		for _, frameworkName := range sortedKeys(env.Frameworks) {
			framework := env.Frameworks[frameworkName]
			if len(framework.Location) == 0 {
				continue
			}
			out = append(out, types.EnvironmentReference{Environment: env.Name, Role: types.RoleFramework, Name: frameworkName, Location: framework.Location})
		}
	}
	return out
}

func sortedKeys(items map[string]types.EnvironmentItem) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
