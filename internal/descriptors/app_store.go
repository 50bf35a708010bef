package descriptors

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

// Registry service entities and fields used by registry-hosted bundles.
const (
	EntityBundle        = "Bundle"
	EntityBundleVersion = "BundleVersion"

	FieldCode               = "code"
	FieldBundle             = "bundle"
	FieldPayload            = "payload"
	FieldDeprecated         = "deprecated"
	FieldDeprecationMessage = "deprecation_message"
	FieldChangelog          = "changelog"
	FieldReleaseNotes       = "release_notes_url"
	FieldLabels             = "labels"
)

const appStoreDir = "app_store"

// appStoreBackend is a bundle hosted by the registry service as a
// compressed attachment on a BundleVersion record.
type appStoreBackend struct {
	base
	name    string
	version string
	label   string

	metaMu   sync.Mutex
	metadata *types.RegistryMetadata
}

func newAppStoreBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error) {
	name, err := requireField(loc, "name")
	if err != nil {
		return nil, err
	}
	version, err := requireField(loc, "version")
	if err != nil {
		return nil, err
	}
	b := &appStoreBackend{name: name, version: version, label: loc.Get("label")}
	b.init(loc, roots, deps, appStoreDir, name, version)
	b.populate = b.download
	return b, nil
}

func (b *appStoreBackend) SystemName() string {
	return b.name
}

func (b *appStoreBackend) download(ctx context.Context, staging string) error {
	uri := b.URI()
	metadata, err := b.registryMetadata(ctx)
	if err != nil {
		return err
	}
	if metadata.AttachmentID == 0 {
		return core.FetchError(uri, "bundle version has no payload attachment", nil)
	}
	service, err := b.deps.service(uri)
	if err != nil {
		return err
	}
	data, err := Retry(ctx, b.deps.Retry, "download "+uri, func() ([]byte, error) {
		return service.DownloadAttachment(ctx, metadata.AttachmentID)
	})
	if err != nil {
		return core.FetchError(uri, "failed to download payload attachment", err)
	}
	if err := b.deps.Archive.Unpack(data, staging); err != nil {
		return core.FetchError(uri, "failed to unpack payload attachment", err)
	}
	if !metadata.Deprecated {
		if err := b.deps.Manifests.WriteRegistryMetadata(staging, metadata); err != nil {
			log.Warn().Err(err).Str("uri", uri).Msg("failed to cache registry metadata")
		}
	}
	return nil
}

// registryMetadata returns the metadata blob from memory, then from disk
// beside the payload, then from the registry service. Unreadable blobs are
// ignored and refetched.
func (b *appStoreBackend) registryMetadata(ctx context.Context) (types.RegistryMetadata, error) {
	b.metaMu.Lock()
	defer b.metaMu.Unlock()
	if b.metadata != nil {
		return *b.metadata, nil
	}
	for _, candidate := range b.CachePaths() {
		if _, err := os.Stat(filepath.Join(candidate, MetadataFileName)); err != nil {
			continue
		}
		metadata, err := b.deps.Manifests.ReadRegistryMetadata(candidate)
		if err != nil {
			log.Debug().Err(err).Str("path", candidate).Msg("registry metadata cache unreadable, refetching")
			continue
		}
		b.metadata = &metadata
		return metadata, nil
	}
	metadata, err := b.remoteMetadata(ctx)
	if err != nil {
		return types.RegistryMetadata{}, err
	}
	b.metadata = &metadata
	if b.IsLocal() && !metadata.Deprecated {
		if err := b.deps.Manifests.WriteRegistryMetadata(b.Path(), metadata); err != nil {
			log.Debug().Err(err).Str("uri", b.URI()).Msg("registry metadata not cached")
		}
	}
	return metadata, nil
}

func (b *appStoreBackend) remoteMetadata(ctx context.Context) (types.RegistryMetadata, error) {
	uri := b.URI()
	service, err := b.deps.service(uri)
	if err != nil {
		return types.RegistryMetadata{}, err
	}
	bundle, err := b.findBundle(ctx)
	if err != nil {
		return types.RegistryMetadata{}, err
	}
	bundleID, _ := bundle.Int("id")
	record, err := service.FindOne(ctx, EntityBundleVersion, []types.Filter{
		{Field: FieldBundle, Value: bundleID},
		{Field: FieldCode, Value: b.version},
	}, []string{FieldCode, FieldPayload, FieldDeprecated, FieldDeprecationMessage, FieldChangelog, FieldReleaseNotes})
	if err != nil {
		return types.RegistryMetadata{}, core.FetchError(uri, "failed to query bundle version", err)
	}
	if record == nil {
		return types.RegistryMetadata{}, core.FetchError(uri, "bundle version not found in registry", nil)
	}
	versionID, _ := record.Int("id")
	attachmentID, _ := record.Int(FieldPayload)
	metadata := types.RegistryMetadata{
		BundleID:     bundleID,
		VersionID:    versionID,
		AttachmentID: attachmentID,
		Changelog:    record.String(FieldChangelog),
		ReleaseNotes: record.String(FieldReleaseNotes),
	}
	switch {
	case bundle.Bool(FieldDeprecated):
		metadata.Deprecated = true
		metadata.Message = bundle.String(FieldDeprecationMessage)
	case record.Bool(FieldDeprecated):
		metadata.Deprecated = true
		metadata.Message = record.String(FieldDeprecationMessage)
	}
	return metadata, nil
}

func (b *appStoreBackend) findBundle(ctx context.Context) (types.ServiceRecord, error) {
	uri := b.URI()
	service, err := b.deps.service(uri)
	if err != nil {
		return nil, err
	}
	bundle, err := service.FindOne(ctx, EntityBundle, []types.Filter{{Field: FieldCode, Value: b.name}},
		[]string{FieldCode, FieldDeprecated, FieldDeprecationMessage})
	if err != nil {
		return nil, core.FetchError(uri, "failed to query bundle", err)
	}
	if bundle == nil {
		return nil, core.FetchError(uri, "bundle not found in registry", nil)
	}
	return bundle, nil
}

// invalidateMetadata drops the cached blob so the next access refetches.
func (b *appStoreBackend) invalidateMetadata() {
	b.metaMu.Lock()
	defer b.metaMu.Unlock()
	b.metadata = nil
	for _, candidate := range b.CachePaths() {
		blob := filepath.Join(candidate, MetadataFileName)
		if err := os.Remove(blob); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", blob).Msg("failed to remove registry metadata cache")
		}
	}
}

func (b *appStoreBackend) Deprecation(ctx context.Context) (bool, string, error) {
	metadata, err := b.registryMetadata(ctx)
	if err != nil {
		return false, "", err
	}
	if metadata.Deprecated {
		b.invalidateMetadata()
	}
	return metadata.Deprecated, metadata.Message, nil
}

func (b *appStoreBackend) Changelog(ctx context.Context) (string, string, error) {
	metadata, err := b.registryMetadata(ctx)
	if err != nil {
		return "", "", err
	}
	return metadata.Changelog, metadata.ReleaseNotes, nil
}

func (b *appStoreBackend) Versions(ctx context.Context) ([]string, error) {
	active, _, err := b.listVersions(ctx)
	return active, err
}

// listVersions returns active and deprecated version codes, honouring the
// label when one is set.
func (b *appStoreBackend) listVersions(ctx context.Context) ([]string, []string, error) {
	uri := b.URI()
	service, err := b.deps.service(uri)
	if err != nil {
		return nil, nil, err
	}
	bundle, err := b.findBundle(ctx)
	if err != nil {
		return nil, nil, err
	}
	bundleID, _ := bundle.Int("id")
	records, err := service.Find(ctx, EntityBundleVersion, []types.Filter{{Field: FieldBundle, Value: bundleID}},
		[]string{FieldCode, FieldDeprecated, FieldLabels})
	if err != nil {
		return nil, nil, core.FetchError(uri, "failed to list bundle versions", err)
	}
	var active, deprecated []string
	for _, record := range records {
		code := record.String(FieldCode)
		if code == "" {
			continue
		}
		if b.label != "" && !hasLabel(record, b.label) {
			continue
		}
		if record.Bool(FieldDeprecated) {
			deprecated = append(deprecated, code)
			continue
		}
		active = append(active, code)
	}
	return active, deprecated, nil
}

// Latest prefers active versions and only falls back to deprecated ones
// when nothing active matches.
func (b *appStoreBackend) Latest(ctx context.Context, pattern string) (Backend, error) {
	active, deprecated, err := b.listVersions(ctx)
	if err != nil {
		return nil, err
	}
	version, err := core.FindLatestMatching(active, pattern)
	if err != nil && len(deprecated) > 0 {
		all := append(append([]string(nil), active...), deprecated...)
		if fallback, fallbackErr := core.FindLatestMatching(all, pattern); fallbackErr == nil {
			log.Warn().Str("bundle", b.name).Str("version", fallback).Msg("only a deprecated version matches")
			version, err = fallback, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return newAppStoreBackend(b.loc.With("version", version), b.roots, b.deps)
}

func hasLabel(record types.ServiceRecord, label string) bool {
	switch labels := record[FieldLabels].(type) {
	case []any:
		for _, value := range labels {
			if text, ok := value.(string); ok && text == label {
				return true
			}
		}
	case []string:
		for _, value := range labels {
			if value == label {
				return true
			}
		}
	}
	return false
}
