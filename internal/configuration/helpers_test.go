package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pipeline-bundles/internal/adapters"
	"pipeline-bundles/internal/descriptors"
	"pipeline-bundles/internal/types"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type testEnv struct {
	deps     Dependencies
	registry *descriptors.Registry
	service  *adapters.RegistrySnapshotAdapter
	bundles  string
	coreLoc  types.Location
}

// newTestEnv wires real file adapters over temp directories. snapshot is
// the body of the registry snapshot below its host line.
func newTestEnv(t *testing.T, snapshot string) *testEnv {
	t.Helper()
	base := t.TempDir()
	snapshotPath := filepath.Join(base, "registry.yml")
	require.NoError(t, os.WriteFile(snapshotPath, []byte("host: https://studio.example.com\n"+snapshot), 0o644))
	service := adapters.NewRegistrySnapshotAdapter(snapshotPath)

	registry := descriptors.NewRegistry(descriptors.NewFactory(descriptors.Dependencies{
		Service:   service,
		Manifests: adapters.NewManifestFileAdapter(),
		Archive:   adapters.NewTarArchiveAdapter(),
		Retry:     descriptors.NoRetry(),
	}))
	env := &testEnv{
		registry: registry,
		service:  service,
		bundles:  filepath.Join(base, "bundles"),
	}
	env.deps = Dependencies{
		Registry:  registry,
		Roots:     types.NewCacheRoots(filepath.Join(base, "cache"), nil),
		Sidecars:  adapters.NewSidecarFileAdapter(),
		Service:   service,
		HTTPProxy: "http://proxy.internal:3128",
		Clock:     func() time.Time { return fixedNow },
		GOOS:      "linux",
	}
	coreDir := env.writeBundle(t, "core-v2.3.0", "display_name: Core\n", map[string]string{
		"setup/root_binaries/pipeline":     "#!/bin/sh\n",
		"setup/root_binaries/pipeline.bat": "@echo off\n",
		"python/core.py":                   "VERSION = '2.3.0'\n",
	})
	env.coreLoc = types.NewLocation(types.KindPath, map[string]string{"path": coreDir, "version": "v2.3.0"})
	return env
}

// writeBundle creates a payload directory holding info.yml and files.
func (e *testEnv) writeBundle(t *testing.T, name string, manifest string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(e.bundles, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, adapters.ManifestFileName), []byte(manifest), 0o644))
	for rel, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

// writeConfig creates a configuration payload pinned to the test core.
func (e *testEnv) writeConfig(t *testing.T, name string, extraManifest string) types.Location {
	t.Helper()
	manifest := fmt.Sprintf("display_name: %s\nrequires_core_version: v2.0.0\ncore:\n  type: path\n  path: %q\n  version: v2.3.0\n%s",
		name, e.coreLoc.Get("path"), extraManifest)
	dir := e.writeBundle(t, name, manifest, map[string]string{
		"env/project.yml": "engines: {}\n",
		"hooks/noop.py":   "pass\n",
	})
	return types.NewLocation(types.KindPath, map[string]string{"path": dir, "version": "v1.0.0"})
}

// setSnapshot replaces the registry snapshot body; it must run before the
// first registry query.
func (e *testEnv) setSnapshot(t *testing.T, snapshot string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.service.Path, []byte("host: https://studio.example.com\n"+snapshot), 0o644))
}

func (e *testEnv) configFacade(t *testing.T, loc types.Location) *descriptors.Facade {
	t.Helper()
	facade, err := e.registry.GetOrCreate(t.Context(), types.RoleConfiguration, loc, e.deps.Roots)
	require.NoError(t, err)
	return facade
}

func intPtr(value int) *int {
	return &value
}
