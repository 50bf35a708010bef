package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pipeline-bundles/internal/app"
)

type uploadOptions struct {
	sessionOptions
	EntityType string
	EntityID   int
	Field      string
	Filename   string
}

func newUploadCommand() *cobra.Command {
	opts := uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload <dir>",
		Short: "Pack a bundle directory and attach it to a registry record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), cmd, opts, args[0])
		},
	}
	addSessionFlags(cmd, &opts.sessionOptions)
	cmd.Flags().StringVar(&opts.EntityType, "entity-type", "", "Entity type of the owning record")
	cmd.Flags().IntVar(&opts.EntityID, "entity-id", 0, "Id of the owning record")
	cmd.Flags().StringVar(&opts.Field, "field", "", "Attachment field on the owning record")
	cmd.Flags().StringVar(&opts.Filename, "filename", "", "Attachment file name (defaults to <dir>.tar.gz)")
	return cmd
}

func runUpload(ctx context.Context, cmd *cobra.Command, opts uploadOptions, dir string) error {
	service := newAppService()
	result, err := service.Upload(ctx, app.UploadRequest{
		Connection: opts.connection(cmd),
		SourceDir:  dir,
		EntityType: opts.EntityType,
		EntityID:   opts.EntityID,
		Field:      opts.Field,
		Filename:   opts.Filename,
	})
	if err != nil {
		return err
	}
	fmt.Printf("uploaded attachment %d (%d bytes)\n", result.AttachmentID, result.Size)
	fmt.Println(result.URI)
	return nil
}
