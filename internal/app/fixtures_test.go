package app

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"pipeline-bundles/internal/adapters"
	"pipeline-bundles/internal/configuration"
	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/descriptors"
	"pipeline-bundles/internal/types"
)

var fixedNow = time.Date(2026, 5, 2, 18, 4, 0, 0, time.UTC)

// studio is an offline registry snapshot plus local bundle directories.
type studio struct {
	t        *testing.T
	dir      string
	snapshot adapters.RegistrySnapshot
	nextID   int
	coreLoc  types.Location
}

func newStudio(t *testing.T) *studio {
	t.Helper()
	s := &studio{
		t:   t,
		dir: t.TempDir(),
		snapshot: adapters.RegistrySnapshot{
			Host:        "https://studio.example.com",
			Entities:    map[string][]types.ServiceRecord{},
			Attachments: map[int]string{},
		},
		nextID: 100,
	}
	coreDir := s.writeDir("bundles/core", map[string]string{
		descriptors.ManifestFileName:   "display_name: Core\n",
		"setup/root_binaries/pipeline": "#!/bin/sh\n",
	})
	s.coreLoc = types.NewLocation(types.KindPath, map[string]string{"path": coreDir, "version": "v3.1.0"})
	return s
}

func (s *studio) snapshotPath() string {
	return filepath.Join(s.dir, "registry.yml")
}

func (s *studio) writeDir(rel string, files map[string]string) string {
	s.t.Helper()
	dir := filepath.Join(s.dir, filepath.FromSlash(rel))
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(s.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(s.t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

// addBundle publishes versions of a registry bundle; true marks a version
// deprecated.
func (s *studio) addBundle(name string, versions map[string]bool) {
	s.t.Helper()
	s.nextID++
	bundleID := s.nextID
	s.snapshot.Entities[descriptors.EntityBundle] = append(s.snapshot.Entities[descriptors.EntityBundle], types.ServiceRecord{
		"id": bundleID, descriptors.FieldCode: name,
	})
	for version, deprecated := range versions {
		s.nextID++
		id := s.nextID
		payload := s.writeDir(fmt.Sprintf("payloads/%s-%s", name, version), map[string]string{
			descriptors.ManifestFileName: "display_name: " + name + " " + version + "\n",
		})
		data, err := adapters.NewTarArchiveAdapter().Pack(payload)
		require.NoError(s.t, err)
		rel := fmt.Sprintf("files/%d.tar.gz", id)
		require.NoError(s.t, os.MkdirAll(filepath.Join(s.dir, "files"), 0o755))
		require.NoError(s.t, os.WriteFile(filepath.Join(s.dir, filepath.FromSlash(rel)), data, 0o644))
		s.snapshot.Attachments[id] = rel
		s.snapshot.Entities[descriptors.EntityBundleVersion] = append(s.snapshot.Entities[descriptors.EntityBundleVersion], types.ServiceRecord{
			"id":                        id,
			descriptors.FieldCode:       version,
			descriptors.FieldBundle:     map[string]any{"type": descriptors.EntityBundle, "id": bundleID},
			descriptors.FieldPayload:    map[string]any{"type": "Attachment", "id": id},
			descriptors.FieldDeprecated: deprecated,
		})
	}
}

// addConfig writes a configuration payload whose project environment holds
// env, and returns its location.
func (s *studio) addConfig(name string, env string) types.Location {
	s.t.Helper()
	manifest := fmt.Sprintf("display_name: %s\ncore:\n  type: path\n  path: %q\n  version: v3.1.0\n", name, s.coreLoc.Get("path"))
	dir := s.writeDir("bundles/"+name, map[string]string{
		descriptors.ManifestFileName: manifest,
		"env/project.yml":            env,
	})
	return types.NewLocation(types.KindPath, map[string]string{"path": dir, "version": "v1.0.0"})
}

// place points the Primary configuration of project 7 at loc.
func (s *studio) place(loc types.Location) {
	s.snapshot.Entities[configuration.EntityPipelineConfiguration] = []types.ServiceRecord{{
		"id":         5,
		"code":       "Primary",
		"project":    map[string]any{"type": "Project", "id": 7},
		"descriptor": core.SerializeURI(loc),
	}}
	s.save()
}

func (s *studio) addRecord(entity string, record types.ServiceRecord) {
	s.snapshot.Entities[entity] = append(s.snapshot.Entities[entity], record)
}

func (s *studio) save() {
	s.t.Helper()
	data, err := yaml.Marshal(s.snapshot)
	require.NoError(s.t, err)
	require.NoError(s.t, os.WriteFile(s.snapshotPath(), data, 0o644))
}

// reload reads the snapshot as the last writer left it.
func (s *studio) reload() adapters.RegistrySnapshot {
	s.t.Helper()
	data, err := os.ReadFile(s.snapshotPath())
	require.NoError(s.t, err)
	var snapshot adapters.RegistrySnapshot
	require.NoError(s.t, yaml.Unmarshal(data, &snapshot))
	return snapshot
}

func (s *studio) service() Service {
	service := NewService()
	service.Clock = func() time.Time { return fixedNow }
	service.GOOS = "linux"
	service.Retry = descriptors.NoRetry()
	return service
}

func (s *studio) connection() Connection {
	return Connection{Snapshot: s.snapshotPath()}
}

func (s *studio) cache() CacheSettings {
	return CacheSettings{Primary: filepath.Join(s.dir, "cache")}
}

func intPtr(value int) *int {
	return &value
}
