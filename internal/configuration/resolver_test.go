package configuration

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

func placementSnapshot(siteURI string) string {
	return fmt.Sprintf(`entities:
  PipelineConfiguration:
    - id: 1
      code: Primary
      project: {type: Project, id: 7}
      linux_path: /mnt/pipeline/primary
      descriptor: sgd:app_store:ignored:v1.0.0
    - id: 2
      code: Primary
      project: null
      descriptor: %q
    - id: 3
      code: Review
      project: {type: Project, id: 7}
      windows_path: 'P:\pipeline'
`, siteURI)
}

func TestResolverPrecedence(t *testing.T) {
	env := newTestEnv(t, "")
	siteLoc := env.writeConfig(t, "site-config", "")
	env.setSnapshot(t, placementSnapshot(core.SerializeURI(siteLoc)))
	resolver := NewResolver(env.deps)
	ctx := t.Context()
	fallback := env.writeConfig(t, "fallback-config", "")

	t.Run("managed path wins over descriptor", func(t *testing.T) {
		record, err := resolver.Resolve(ctx, ResolveRequest{ProjectID: intPtr(7), ConfigName: "Primary", Fallback: &fallback})
		require.NoError(t, err)
		assert.True(t, record.Managed())
		assert.Equal(t, filepath.Clean("/mnt/pipeline/primary"), record.InstallRoot())
		assert.Equal(t, types.ConfigStatusUpToDate, record.Status())
	})

	t.Run("descriptor uri for site", func(t *testing.T) {
		record, err := resolver.Resolve(ctx, ResolveRequest{ConfigName: "Primary", Fallback: &fallback})
		require.NoError(t, err)
		assert.False(t, record.Managed())
		assert.True(t, record.Descriptor().Location().Equal(siteLoc))
		assert.Equal(t, types.RoleConfiguration, record.Descriptor().Role())
		want := UnmanagedInstallRoot(env.deps.Roots.Primary(), "https://studio.example.com", nil, intPtr(2), "")
		assert.Equal(t, want, record.InstallRoot())
	})

	t.Run("path for another platform falls through to fallback", func(t *testing.T) {
		record, err := resolver.Resolve(ctx, ResolveRequest{ProjectID: intPtr(7), ConfigName: "Review", Namespace: "dailies", Fallback: &fallback})
		require.NoError(t, err)
		assert.False(t, record.Managed())
		assert.True(t, record.Descriptor().Location().Equal(fallback))
		want := UnmanagedInstallRoot(env.deps.Roots.Primary(), "https://studio.example.com", intPtr(7), intPtr(3), "dailies")
		assert.Equal(t, want, record.InstallRoot())
	})

	t.Run("unknown project uses fallback", func(t *testing.T) {
		record, err := resolver.Resolve(ctx, ResolveRequest{ProjectID: intPtr(8), ConfigName: "Primary", Fallback: &fallback})
		require.NoError(t, err)
		assert.True(t, record.Descriptor().Location().Equal(fallback))
	})

	t.Run("no configuration", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, ResolveRequest{ProjectID: intPtr(8), ConfigName: "Primary"})
		require.Error(t, err)
		assert.True(t, core.IsKind(err, core.ErrorKindNoConfiguration))
		assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
		assert.Contains(t, err.Error(), "Primary for project 8")
	})

	t.Run("name required", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, ResolveRequest{})
		require.Error(t, err)
		assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	})
}

func TestResolverWindowsManagedPath(t *testing.T) {
	env := newTestEnv(t, placementSnapshot("sgd:app_store:site:v1.0.0"))
	env.deps.GOOS = "windows"
	record, err := NewResolver(env.deps).Resolve(t.Context(), ResolveRequest{ProjectID: intPtr(7), ConfigName: "Review"})
	require.NoError(t, err)
	assert.True(t, record.Managed())
	assert.Equal(t, filepath.Clean(`P:\pipeline`), record.InstallRoot())
}

func TestResolverOffline(t *testing.T) {
	env := newTestEnv(t, "")
	env.deps.Service = nil
	fallback := env.writeConfig(t, "fallback-config", "")

	record, err := NewResolver(env.deps).Resolve(t.Context(), ResolveRequest{ConfigName: "Primary", Fallback: &fallback})
	require.NoError(t, err)
	assert.Equal(t, UnmanagedInstallRoot(env.deps.Roots.Primary(), "", nil, nil, ""), record.InstallRoot())
}
