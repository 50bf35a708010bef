package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pipeline-bundles/internal/app"
)

type statusOptions struct {
	sessionOptions
	configOptions
}

func newStatusCommand() *cobra.Command {
	opts := statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the state of a project's installed configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, opts)
		},
	}
	addSessionFlags(cmd, &opts.sessionOptions)
	addConfigFlags(cmd, &opts.configOptions)
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts statusOptions) error {
	projectID, err := parseProjectID(opts.Project)
	if err != nil {
		return err
	}
	service := newAppService()
	result, err := service.Status(ctx, app.StatusRequest{
		Connection:  opts.connection(cmd),
		Cache:       opts.cache(cmd),
		ProjectID:   projectID,
		ConfigName:  resolveString(cmd, opts.ConfigName, "config_name", "config-name"),
		Namespace:   resolveString(cmd, opts.Namespace, "namespace", "namespace"),
		FallbackURI: resolveString(cmd, opts.FallbackConfig, "fallback_config", "fallback-config"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("status: %s\n", result.Status)
	fmt.Printf("install root: %s\n", result.InstallRoot)
	if result.Managed {
		fmt.Println("managed: true")
		return nil
	}
	fmt.Printf("source: %s\n", result.URI)
	if !result.InstalledAt.IsZero() {
		fmt.Printf("installed at: %s\n", result.InstalledAt.Format(time.RFC3339))
	}
	return nil
}
