package ports

import (
	"context"

	"pipeline-bundles/internal/types"
)

// RegistryServicePort is the remote metadata/record store. Authentication
// is handled by the implementation.
type RegistryServicePort interface {
	Find(ctx context.Context, entityType string, filters []types.Filter, fields []string) ([]types.ServiceRecord, error)
	FindOne(ctx context.Context, entityType string, filters []types.Filter, fields []string) (types.ServiceRecord, error)
	DownloadAttachment(ctx context.Context, attachmentID int) ([]byte, error)
	UploadAttachment(ctx context.Context, entityType string, entityID int, field string, filename string, data []byte) (int, error)
	CreateEvent(ctx context.Context, event types.ServiceRecord) error
	// Host identifies the service instance; it feeds install-root naming.
	Host() string
}
