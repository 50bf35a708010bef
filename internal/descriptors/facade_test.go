package descriptors

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-bundles/internal/types"
)

func newPathFacade(t *testing.T, manifest string) *Facade {
	t.Helper()
	dir := t.TempDir()
	writeManifest(t, dir, manifest)
	backend, err := NewFactory(testDeps(nil, nil)).New(types.NewLocation(types.KindPath, map[string]string{"path": dir, "name": "studio-config", "version": "v1.0.0"}), types.NewCacheRoots(t.TempDir(), nil))
	require.NoError(t, err)
	return NewFacade(types.RoleConfiguration, backend)
}

func TestFacadeAccessors(t *testing.T) {
	facade := newPathFacade(t, `display_name: Studio Config
requires_core_version: v1.4.0
supported_platforms: [linux, mac]
frameworks:
  - {name: tk-framework-qt, version: v5.x.x}
core:
  type: app_store
  name: pipeline-core
  version: v1.5.2
`)
	assert.Equal(t, "Studio Config", facade.DisplayName())
	assert.Equal(t, "No description available.", facade.Description())

	frameworks, err := facade.RequiredFrameworks()
	require.NoError(t, err)
	if diff := cmp.Diff([]types.FrameworkRequirement{{Name: "tk-framework-qt", Version: "v5.x.x"}}, frameworks); diff != "" {
		t.Fatalf("unexpected frameworks (-want +got):\n%s", diff)
	}

	loc, ok, err := facade.DeclaredCore()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.KindAppStore, loc.Kind)
	assert.Equal(t, "v1.5.2", loc.Version())

	linux, err := facade.SupportsPlatform("linux")
	require.NoError(t, err)
	assert.True(t, linux)
	mac, err := facade.SupportsPlatform("darwin")
	require.NoError(t, err)
	assert.True(t, mac)
	windows, err := facade.SupportsPlatform("windows")
	require.NoError(t, err)
	assert.False(t, windows)

	require.NoError(t, facade.CheckCoreCompatibility("v1.5.2"))
	require.NoError(t, facade.CheckCoreCompatibility("v1.4.0"))
	require.Error(t, facade.CheckCoreCompatibility("v1.3.9"))
	require.NoError(t, facade.CheckCoreCompatibility("HEAD"), "unparseable versions are not judged")
}

func TestFacadeWithoutCore(t *testing.T) {
	facade := newPathFacade(t, "description: bare\n")
	_, ok, err := facade.DeclaredCore()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "studio-config", facade.DisplayName())
	schema, err := facade.ConfigurationSchema()
	require.NoError(t, err)
	assert.Empty(t, schema)
	all, err := facade.SupportsCurrentPlatform()
	require.NoError(t, err)
	assert.True(t, all)
}

func TestRetryPolicies(t *testing.T) {
	assert.Equal(t, RetryPolicy{}, NoRetry())
	assert.Equal(t, RetryPolicy{MaxRetries: 1, Delay: 500 * time.Millisecond}, AttachmentRetryPolicy())

	calls := 0
	_, err := Retry(t.Context(), NoRetry(), "noop", func() (int, error) {
		calls++
		return 0, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)

	calls = 0
	value, err := Retry(t.Context(), RetryPolicy{MaxRetries: 2}, "flaky", func() (string, error) {
		calls++
		if calls < 3 {
			return "", assert.AnError
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 3, calls)
}
