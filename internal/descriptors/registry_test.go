package descriptors

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

// seedAppStore registers tk-review with the given versions; every version
// gets a payload attachment whose id is 100 + its index.
func seedAppStore(t *testing.T, service *stubService, versions map[string]bool) {
	t.Helper()
	service.add(EntityBundle, types.ServiceRecord{"id": 3, FieldCode: "tk-review"})
	id := 100
	for version, deprecated := range versions {
		id++
		service.add(EntityBundleVersion, types.ServiceRecord{
			"id":            id,
			FieldCode:       version,
			FieldBundle:     map[string]any{"type": EntityBundle, "id": 3},
			FieldPayload:    map[string]any{"type": "Attachment", "id": id},
			FieldDeprecated: deprecated,
			FieldChangelog:  "notes for " + version,
		})
		service.attachments[id] = packPayload(t, map[string]string{
			ManifestFileName: "display_name: Review " + version + "\n",
		})
	}
}

func appStoreLocation(version string) types.Location {
	return types.NewLocation(types.KindAppStore, map[string]string{"name": "tk-review", "version": version})
}

// ----- identity caching -----

func TestRegistryIdentity(t *testing.T) {
	registry := NewRegistry(NewFactory(testDeps(nil, &stubVCS{})))
	roots := types.NewCacheRoots(t.TempDir(), nil)
	ctx := t.Context()

	first, err := registry.GetOrCreate(ctx, types.RoleApplication, gitLocation("v1.0.0"), roots)
	require.NoError(t, err)
	second, err := registry.GetOrCreate(ctx, types.RoleApplication, types.NewLocation(types.KindGit, map[string]string{
		"version": "v1.0.0",
		"path":    "https://git.example.com/acme/tk-review.git",
	}), roots)
	require.NoError(t, err)
	assert.Same(t, first, second)

	viaURI, err := registry.GetOrCreateURI(ctx, types.RoleApplication, core.SerializeURI(gitLocation("v1.0.0")), roots)
	require.NoError(t, err)
	assert.Same(t, first, viaURI)

	asFramework, err := registry.GetOrCreate(ctx, types.RoleFramework, gitLocation("v1.0.0"), roots)
	require.NoError(t, err)
	assert.NotSame(t, first, asFramework)
	assert.Same(t, first.Backend, asFramework.Backend, "roles share one backend")
	assert.Equal(t, types.RoleFramework, asFramework.Role())

	otherRoots, err := registry.GetOrCreate(ctx, types.RoleApplication, gitLocation("v1.0.0"), types.NewCacheRoots(roots.Primary(), nil))
	require.NoError(t, err)
	assert.NotSame(t, first, otherRoots, "roots are keyed by identity, not by value")
}

func TestRegistryConcurrentCreators(t *testing.T) {
	registry := NewRegistry(NewFactory(testDeps(nil, &stubVCS{})))
	roots := types.NewCacheRoots(t.TempDir(), nil)

	const workers = 16
	results := make([]*Facade, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			facade, err := registry.GetOrCreate(t.Context(), types.RoleEngine, gitLocation("v1.0.0"), roots)
			assert.NoError(t, err)
			results[i] = facade
		}()
	}
	wg.Wait()
	for _, facade := range results {
		assert.Same(t, results[0], facade)
	}
}

func TestRegistryResolvesLatestBeforeCaching(t *testing.T) {
	service := newStubService()
	seedAppStore(t, service, map[string]bool{"v1.0.0": false, "v1.1.0": false, "v2.0.0": true})
	registry := NewRegistry(NewFactory(testDeps(service, nil)))
	roots := types.NewCacheRoots(t.TempDir(), nil)
	ctx := t.Context()

	latest, err := registry.GetOrCreate(ctx, types.RoleApplication, appStoreLocation(core.LatestSentinel), roots)
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", latest.Version(), "deprecated versions lose to active ones")

	concrete, err := registry.GetOrCreate(ctx, types.RoleApplication, appStoreLocation("v1.1.0"), roots)
	require.NoError(t, err)
	assert.Same(t, latest, concrete)

	pattern, err := registry.GetOrCreate(ctx, types.RoleApplication, appStoreLocation("v1.0.x"), roots)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", pattern.Version())

	deprecatedOnly, err := registry.Latest(ctx, types.RoleApplication, appStoreLocation("v1.0.0"), roots, "v2.x.x")
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0", deprecatedOnly.Version(), "deprecated versions still match when nothing else does")
}

func TestRegistryRejectsUnresolvableVersions(t *testing.T) {
	registry := NewRegistry(NewFactory(testDeps(nil, nil)))
	roots := types.NewCacheRoots(t.TempDir(), nil)
	ctx := t.Context()

	tests := []struct {
		name string
		loc  types.Location
	}{
		{"manual latest", types.NewLocation(types.KindManual, map[string]string{"name": "tool", "version": core.LatestSentinel})},
		{"manual pattern", types.NewLocation(types.KindManual, map[string]string{"name": "tool", "version": "v1.x.x"})},
		{"path latest", types.NewLocation(types.KindPath, map[string]string{"path": t.TempDir(), "version": core.LatestSentinel})},
		{"dev pattern", types.NewLocation(types.KindDev, map[string]string{"path": t.TempDir(), "version": "v2.x.x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.GetOrCreate(ctx, types.RoleApplication, tt.loc, roots)
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.ErrorKindLocator), err.Error())
		})
	}
	assert.NoDirExists(t, filepath.Join(roots.Primary(), manualDir, "tool", core.LatestSentinel))

	concrete, err := registry.GetOrCreate(ctx, types.RoleApplication, types.NewLocation(types.KindManual, map[string]string{"name": "tool", "version": "v1.0.0"}), roots)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", concrete.Version())
}

// ----- registry-hosted bundles -----

func TestAppStoreFetchCachesMetadata(t *testing.T) {
	service := newStubService()
	seedAppStore(t, service, map[string]bool{"v1.0.0": false})
	roots := types.NewCacheRoots(t.TempDir(), nil)
	factory := NewFactory(testDeps(service, nil))

	backend, err := factory.New(appStoreLocation("v1.0.0"), roots)
	require.NoError(t, err)
	require.NoError(t, backend.EnsureLocal(t.Context()))
	assert.EqualValues(t, 1, service.downloads.Load())
	assert.FileExists(t, filepath.Join(backend.Path(), MetadataFileName))

	manifest, err := backend.Manifest()
	require.NoError(t, err)
	assert.Equal(t, "Review v1.0.0", manifest.DisplayName)

	queries := service.queries.Load()
	fresh, err := factory.New(appStoreLocation("v1.0.0"), roots)
	require.NoError(t, err)
	text, _, err := fresh.Changelog(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "notes for v1.0.0", text)
	assert.Equal(t, queries, service.queries.Load(), "metadata comes from the on-disk blob")

	require.NoError(t, os.WriteFile(filepath.Join(backend.Path(), MetadataFileName), []byte("bundle_id: [broken"), 0o644))
	refetched, err := factory.New(appStoreLocation("v1.0.0"), roots)
	require.NoError(t, err)
	deprecated, _, err := refetched.Deprecation(t.Context())
	require.NoError(t, err)
	assert.False(t, deprecated)
	assert.Greater(t, service.queries.Load(), queries, "an unreadable blob is refetched silently")
}

func TestAppStoreDeprecationInvalidatesBlob(t *testing.T) {
	service := newStubService()
	seedAppStore(t, service, map[string]bool{"v1.0.0": false})
	roots := types.NewCacheRoots(t.TempDir(), nil)
	factory := NewFactory(testDeps(service, nil))

	backend, err := factory.New(appStoreLocation("v1.0.0"), roots)
	require.NoError(t, err)
	require.NoError(t, backend.EnsureLocal(t.Context()))

	blob := filepath.Join(backend.Path(), MetadataFileName)
	require.NoError(t, os.WriteFile(blob, []byte("bundle_id: 3\nversion_id: 101\nattachment_id: 101\ndeprecated: true\ndeprecation_message: use tk-review2\n"), 0o644))

	fresh, err := factory.New(appStoreLocation("v1.0.0"), roots)
	require.NoError(t, err)
	deprecated, message, err := fresh.Deprecation(t.Context())
	require.NoError(t, err)
	assert.True(t, deprecated)
	assert.Equal(t, "use tk-review2", message)
	assert.NoFileExists(t, blob)
}

func TestAttachmentDownloadRetriesOnce(t *testing.T) {
	tests := []struct {
		name          string
		failures      int
		wantErr       bool
		wantDownloads int32
	}{
		{name: "transient failure", failures: 1, wantDownloads: 2},
		{name: "persistent failure", failures: 5, wantErr: true, wantDownloads: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newStubService()
			seedAppStore(t, service, map[string]bool{"v1.0.0": false})
			service.failures = tt.failures
			backend, err := NewFactory(testDeps(service, nil)).New(appStoreLocation("v1.0.0"), types.NewCacheRoots(t.TempDir(), nil))
			require.NoError(t, err)

			err = backend.EnsureLocal(t.Context())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsKind(err, core.ErrorKindFetch))
				assert.False(t, backend.IsLocal())
			} else {
				require.NoError(t, err)
				assert.True(t, backend.IsLocal())
			}
			assert.Equal(t, tt.wantDownloads, service.downloads.Load())
		})
	}
}

func TestAppStoreUnknownBundle(t *testing.T) {
	backend, err := NewFactory(testDeps(newStubService(), nil)).New(appStoreLocation("v1.0.0"), types.NewCacheRoots(t.TempDir(), nil))
	require.NoError(t, err)
	err = backend.EnsureLocal(t.Context())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrorKindFetch))
	assert.Contains(t, err.Error(), "sgd:app_store:tk-review:v1.0.0")
}

// ----- record attachments -----

func TestShotgunLatestChangesIdentity(t *testing.T) {
	service := newStubService()
	service.add("PipelineConfiguration", types.ServiceRecord{
		"id":              5,
		FieldCode:         "Primary",
		"project":         map[string]any{"type": "Project", "id": 7},
		"uploaded_config": map[string]any{"type": "Attachment", "id": 43},
	})
	service.attachments[43] = packPayload(t, map[string]string{ManifestFileName: "display_name: Uploaded\n"})
	roots := types.NewCacheRoots(t.TempDir(), nil)
	factory := NewFactory(testDeps(service, nil))

	loc := types.NewLocation(types.KindShotgun, map[string]string{
		"entity_type": "PipelineConfiguration", "field": "uploaded_config", "version": "42",
		"name": "Primary", "project_id": "7",
	})
	backend, err := factory.New(loc, roots)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(roots.Primary(), "sg", "PipelineConfiguration.uploaded_config", "Primary", "v42"), backend.CachePaths()[0])

	latest, err := backend.Latest(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, "43", latest.Version())
	assert.Equal(t, filepath.Join(roots.Primary(), "sg", "PipelineConfiguration.uploaded_config", "Primary", "v43"), latest.CachePaths()[0])

	require.NoError(t, latest.EnsureLocal(t.Context()))
	manifest, err := latest.Manifest()
	require.NoError(t, err)
	assert.Equal(t, "Uploaded", manifest.DisplayName)

	same, err := latest.Latest(t.Context(), "")
	require.NoError(t, err)
	assert.Same(t, latest, same)
}

func TestShotgunRequiresOwner(t *testing.T) {
	_, err := NewFactory(testDeps(nil, nil)).New(types.NewLocation(types.KindShotgun, map[string]string{
		"entity_type": "PipelineConfiguration", "field": "uploaded_config", "version": "42",
	}), types.NewCacheRoots(t.TempDir(), nil))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrorKindLocator))
}
