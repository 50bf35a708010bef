package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pipeline-bundles/internal/app"
)

type cacheOptions struct {
	sessionOptions
	Role string
}

func newCacheCommand() *cobra.Command {
	opts := cacheOptions{}
	cmd := &cobra.Command{
		Use:   "cache <uri>",
		Short: "Resolve a bundle location and make its payload local",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd.Context(), cmd, opts, args[0])
		},
	}
	addSessionFlags(cmd, &opts.sessionOptions)
	cmd.Flags().StringVar(&opts.Role, "role", "application", "Bundle role (application, engine, framework, configuration, core)")
	return cmd
}

func runCache(ctx context.Context, cmd *cobra.Command, opts cacheOptions, uri string) error {
	service := newAppService()
	result, err := service.Cache(ctx, app.CacheRequest{
		Connection: opts.connection(cmd),
		Cache:      opts.cache(cmd),
		URI:        uri,
		Role:       opts.Role,
	})
	if err != nil {
		return err
	}
	state := "already local"
	if result.Fetched {
		state = "fetched"
	}
	fmt.Printf("%s: %s (%s)\n", result.URI, result.Path, state)
	return nil
}

type latestOptions struct {
	sessionOptions
	Pattern      string
	ListVersions bool
}

func newLatestCommand() *cobra.Command {
	opts := latestOptions{}
	cmd := &cobra.Command{
		Use:   "latest <uri>",
		Short: "Print the newest concrete location matching a version pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLatest(cmd.Context(), cmd, opts, args[0])
		},
	}
	addSessionFlags(cmd, &opts.sessionOptions)
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "Version pattern such as v1.2.x")
	cmd.Flags().BoolVar(&opts.ListVersions, "versions", false, "Also list every available version")
	return cmd
}

func runLatest(ctx context.Context, cmd *cobra.Command, opts latestOptions, uri string) error {
	service := newAppService()
	result, err := service.Latest(ctx, app.LatestRequest{
		Connection: opts.connection(cmd),
		Cache:      opts.cache(cmd),
		URI:        uri,
		Pattern:    opts.Pattern,
	})
	if err != nil {
		return err
	}
	fmt.Println(result.URI)
	if opts.ListVersions {
		fmt.Printf("versions: %s\n", strings.Join(result.Versions, ", "))
	}
	return nil
}
