package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-bundles/internal/types"
)

// ----- manifest -----

func TestManifestFileAdapterReadManifest(t *testing.T) {
	dir := t.TempDir()
	content := `display_name: Review Tool
requires_core_version: v1.4.0
frameworks:
  - name: qt-widgets
    version: v2.x.x
supported_engines: [nuke, maya]
configuration:
  shot_filter:
    type: str
    default_value: main
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(content), 0o644))

	manifest, err := NewManifestFileAdapter().ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "Review Tool", manifest.DisplayName)
	assert.Equal(t, "v1.4.0", manifest.RequiresCoreVersion)
	if diff := cmp.Diff([]types.FrameworkRequirement{{Name: "qt-widgets", Version: "v2.x.x"}}, manifest.Frameworks); diff != "" {
		t.Fatalf("unexpected frameworks (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"nuke", "maya"}, manifest.SupportedEngines)
	assert.Equal(t, "main", manifest.Configuration["shot_filter"]["default_value"])
}

func TestManifestFileAdapterErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		wantCode errbuilder.ErrCode
	}{
		{name: "missing", wantCode: errbuilder.CodeNotFound},
		{name: "malformed", content: ptr("display_name: [unterminated\n"), wantCode: errbuilder.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != nil {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(*tt.content), 0o644))
			}
			_, err := NewManifestFileAdapter().ReadManifest(dir)
			require.Error(t, err)
			if diff := cmp.Diff(tt.wantCode, errbuilder.CodeOf(err)); diff != "" {
				t.Fatalf("unexpected error code (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManifestFileAdapterRegistryMetadata(t *testing.T) {
	dir := t.TempDir()
	adapter := NewManifestFileAdapter()
	_, err := adapter.ReadRegistryMetadata(dir)
	require.Error(t, err)

	want := types.RegistryMetadata{BundleID: 3, VersionID: 11, AttachmentID: 42, Changelog: "fixes"}
	require.NoError(t, adapter.WriteRegistryMetadata(dir, want))
	got, err := adapter.ReadRegistryMetadata(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected metadata (-want +got):\n%s", diff)
	}
}

// ----- side-cars -----

func TestSidecarFileAdapterConfigInfo(t *testing.T) {
	dir := t.TempDir()
	adapter := NewSidecarFileAdapter()

	_, err := adapter.ReadConfigInfo(dir)
	require.Error(t, err)

	info := types.ConfigInfo{
		FormatGeneration: 2,
		SourceURI:        "sgd:app_store:studio-config:v1.0.0",
		Source:           map[string]string{"type": "app_store", "name": "studio-config", "version": "v1.0.0"},
		InstalledAt:      "2026-01-02T03:04:05Z",
	}
	require.NoError(t, adapter.WriteConfigInfo(dir, info))
	got, err := adapter.ReadConfigInfo(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(info, got); diff != "" {
		t.Fatalf("unexpected config info (-want +got):\n%s", diff)
	}
}

func TestSidecarFileAdapterRejectsTruncatedConfigInfo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigInfoFile), []byte("format_generation: 2\nsource_uri: \"sgd:app"), 0o644))
	_, err := NewSidecarFileAdapter().ReadConfigInfo(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigInfoFile), []byte("format_generation: 2\n"), 0o644))
	_, err = NewSidecarFileAdapter().ReadConfigInfo(dir)
	require.Error(t, err)
}

func TestSidecarFileAdapterWritesEveryDocument(t *testing.T) {
	dir := t.TempDir()
	adapter := NewSidecarFileAdapter()
	project := 7
	require.NoError(t, adapter.WriteInstallLocation(dir, types.InstallLocation{Linux: "/studio/cfg"}))
	require.NoError(t, adapter.WriteServiceConnection(dir, types.ServiceConnection{Host: "https://studio.example.com"}))
	require.NoError(t, adapter.WritePipelineIdentity(dir, types.PipelineIdentity{ProjectID: &project, PipelineConfigName: "Primary"}))
	require.NoError(t, adapter.WriteStorageRoots(dir, nil))

	for _, name := range []string{InstallLocationFile, ServiceConnectionFile, PipelineIdentityFile, StorageRootsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	require.Error(t, adapter.WriteInstallLocation("", types.InstallLocation{}))
}

// ----- environments -----

func TestEnvironmentFileAdapterLoadEnvironments(t *testing.T) {
	configDir := t.TempDir()
	envDir := filepath.Join(configDir, "env")
	require.NoError(t, os.MkdirAll(envDir, 0o755))
	content := `engines:
  tk-nuke:
    location: {type: app_store, name: tk-nuke, version: v0.12.5}
    apps:
      tk-review:
        location: {type: git, path: /repos/review.git, version: v1.0.0}
frameworks:
  qt-widgets:
    location: {type: manual, name: qt-widgets, version: v2.1.0}
`
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "shot.yml"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "notes.txt"), []byte("ignored"), 0o644))

	envs, err := NewEnvironmentFileAdapter().LoadEnvironments(configDir)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "shot", envs[0].Name)
	assert.Equal(t, "tk-nuke", envs[0].Engines["tk-nuke"].Location["name"])
	assert.Equal(t, "/repos/review.git", envs[0].Engines["tk-nuke"].Apps["tk-review"].Location["path"])
	assert.Equal(t, "manual", envs[0].Frameworks["qt-widgets"].Location["type"])
}

func TestEnvironmentFileAdapterMissingDirectory(t *testing.T) {
	envs, err := NewEnvironmentFileAdapter().LoadEnvironments(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func ptr[T any](value T) *T {
	return &value
}
