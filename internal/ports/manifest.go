package ports

import "pipeline-bundles/internal/types"

// ManifestPort reads the info.yml manifest and the registry metadata blob
// kept beside a cached payload.
type ManifestPort interface {
	ReadManifest(path string) (types.Manifest, error)
	ReadRegistryMetadata(path string) (types.RegistryMetadata, error)
	WriteRegistryMetadata(path string, metadata types.RegistryMetadata) error
}
