package app

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/descriptors"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

// Upload packs a directory and attaches it to a record field. The returned
// URI addresses exactly the uploaded attachment.
func (s Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	sourceDir := strings.TrimSpace(req.SourceDir)
	if !shared.DirExists(sourceDir) {
		return UploadResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("source directory not found: " + req.SourceDir)
	}
	if !shared.FileExists(filepath.Join(sourceDir, descriptors.ManifestFileName)) {
		return UploadResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("source directory has no info.yml: " + req.SourceDir)
	}
	if strings.TrimSpace(req.EntityType) == "" || strings.TrimSpace(req.Field) == "" || req.EntityID <= 0 {
		return UploadResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("entity type, entity id and field are required")
	}
	service, err := s.requireRegistryService(req.Connection)
	if err != nil {
		return UploadResult{}, err
	}
	data, err := s.Archive.Pack(sourceDir)
	if err != nil {
		return UploadResult{}, err
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = filepath.Base(filepath.Clean(sourceDir)) + ".tar.gz"
	}
	attachmentID, err := service.UploadAttachment(ctx, req.EntityType, req.EntityID, req.Field, filename, data)
	if err != nil {
		return UploadResult{}, err
	}
	loc := types.NewLocation(types.KindShotgun, map[string]string{
		"entity_type": req.EntityType,
		"field":       req.Field,
		"version":     strconv.Itoa(attachmentID),
		"id":          strconv.Itoa(req.EntityID),
	})
	uri := core.SerializeURI(loc)
	log.Info().Str("uri", uri).Int("bytes", len(data)).Msg("uploaded attachment")
	return UploadResult{AttachmentID: attachmentID, URI: uri, Size: len(data)}, nil
}
