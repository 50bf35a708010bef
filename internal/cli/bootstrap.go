package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pipeline-bundles/internal/app"
)

type configOptions struct {
	Project        string
	ConfigName     string
	Namespace      string
	FallbackConfig string
}

func addConfigFlags(cmd *cobra.Command, opts *configOptions) {
	cmd.Flags().StringVar(&opts.Project, "project", "", "Project id, or \"site\"")
	cmd.Flags().StringVar(&opts.ConfigName, "config-name", "Primary", "Pipeline configuration name")
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "Install namespace")
	cmd.Flags().StringVar(&opts.FallbackConfig, "fallback-config", "", "Configuration URI used when no placement record applies")

	_ = viper.BindPFlag("config_name", cmd.Flags().Lookup("config-name"))
	_ = viper.BindPFlag("namespace", cmd.Flags().Lookup("namespace"))
	_ = viper.BindPFlag("fallback_config", cmd.Flags().Lookup("fallback-config"))
}

type bootstrapOptions struct {
	sessionOptions
	configOptions
	DependencyFailure string
	NoTelemetry       bool
}

func newBootstrapCommand() *cobra.Command {
	opts := bootstrapOptions{}
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Install or update a project's configuration and cache its bundles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBootstrap(cmd.Context(), cmd, opts)
		},
	}
	addSessionFlags(cmd, &opts.sessionOptions)
	addConfigFlags(cmd, &opts.configOptions)
	cmd.Flags().StringVar(&opts.DependencyFailure, "dependency-failure", "abort", "Dependency failure handling (abort or aggregate)")
	cmd.Flags().BoolVar(&opts.NoTelemetry, "no-telemetry", false, "Do not record a bootstrap event")
	_ = viper.BindPFlag("dependency_failure", cmd.Flags().Lookup("dependency-failure"))
	_ = viper.BindPFlag("no_telemetry", cmd.Flags().Lookup("no-telemetry"))
	return cmd
}

func runBootstrap(ctx context.Context, cmd *cobra.Command, opts bootstrapOptions) error {
	projectID, err := parseProjectID(opts.Project)
	if err != nil {
		return err
	}
	service := newAppService()
	result, err := service.Bootstrap(ctx, app.BootstrapRequest{
		Connection:  opts.connection(cmd),
		Cache:       opts.cache(cmd),
		ProjectID:   projectID,
		ConfigName:  resolveString(cmd, opts.ConfigName, "config_name", "config-name"),
		Namespace:   resolveString(cmd, opts.Namespace, "namespace", "namespace"),
		FallbackURI: resolveString(cmd, opts.FallbackConfig, "fallback_config", "fallback-config"),
		FailureMode: resolveString(cmd, opts.DependencyFailure, "dependency_failure", "dependency-failure"),
		Telemetry:   !resolveBool(cmd, opts.NoTelemetry, "no_telemetry", "no-telemetry"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("configuration: %s (%s, was %s)\n", result.Layout.InstallRoot, result.Action, result.InitialStatus)
	fmt.Printf("core: %s\n", result.Layout.CorePath)
	for _, entryPoint := range result.Layout.EntryPoints {
		fmt.Printf("entry point: %s\n", entryPoint)
	}
	fmt.Printf("dependencies: checked=%d fetched=%d failed=%d\n",
		result.Dependencies.Checked, result.Dependencies.Fetched, result.Dependencies.Failed)
	return nil
}
