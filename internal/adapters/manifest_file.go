package adapters

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

const (
	// ManifestFileName marks a payload as fully present.
	ManifestFileName = "info.yml"
	// RegistryMetadataFileName is the metadata blob kept beside registry payloads.
	RegistryMetadataFileName = "registry_metadata.yml"
)

type ManifestFileAdapter struct{}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{}
}

// ReadManifest loads <path>/info.yml.
func (a ManifestFileAdapter) ReadManifest(path string) (types.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(path, ManifestFileName))
	if err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("manifest file not found").
			WithCause(err)
	}
	var manifest types.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse manifest yaml").
			WithCause(err)
	}
	return manifest, nil
}

// ReadRegistryMetadata loads <path>/registry_metadata.yml.
func (a ManifestFileAdapter) ReadRegistryMetadata(path string) (types.RegistryMetadata, error) {
	data, err := os.ReadFile(filepath.Join(path, RegistryMetadataFileName))
	if err != nil {
		return types.RegistryMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("registry metadata not cached").
			WithCause(err)
	}
	var metadata types.RegistryMetadata
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return types.RegistryMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse registry metadata").
			WithCause(err)
	}
	return metadata, nil
}

// WriteRegistryMetadata stores the blob through a temp file and rename so
// concurrent readers never see a partial document.
func (a ManifestFileAdapter) WriteRegistryMetadata(path string, metadata types.RegistryMetadata) error {
	data, err := yaml.Marshal(metadata)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode registry metadata").
			WithCause(err)
	}
	return shared.WriteFileAtomic(filepath.Join(path, RegistryMetadataFileName), data)
}

var _ ports.ManifestPort = ManifestFileAdapter{}
