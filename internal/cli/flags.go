package cli

import (
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pipeline-bundles/internal/app"
)

// sessionOptions are the flags every command that talks to the registry
// service or the cache shares.
type sessionOptions struct {
	CacheRoot     string
	FallbackRoots []string
	RegistryURL   string
	Snapshot      string
	APIKey        string
	HTTPProxy     string
	TimeoutSec    int
}

func addSessionFlags(cmd *cobra.Command, opts *sessionOptions) {
	cmd.Flags().StringVar(&opts.CacheRoot, "cache-root", "", "Primary cache root (the only one written to)")
	cmd.Flags().StringSliceVar(&opts.FallbackRoots, "fallback-root", nil, "Read-only fallback cache roots, searched in order")
	cmd.Flags().StringVar(&opts.RegistryURL, "registry-url", "", "Registry service base URL")
	cmd.Flags().StringVar(&opts.Snapshot, "registry-snapshot", "", "Serve the registry from a local YAML snapshot")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "Registry service API key")
	cmd.Flags().StringVar(&opts.HTTPProxy, "http-proxy", "", "HTTP proxy for registry requests")
	cmd.Flags().IntVar(&opts.TimeoutSec, "timeout", 60, "Registry HTTP timeout in seconds (0 = default)")

	_ = viper.BindPFlag("cache_root", cmd.Flags().Lookup("cache-root"))
	_ = viper.BindPFlag("fallback_roots", cmd.Flags().Lookup("fallback-root"))
	_ = viper.BindPFlag("registry_url", cmd.Flags().Lookup("registry-url"))
	_ = viper.BindPFlag("registry_snapshot", cmd.Flags().Lookup("registry-snapshot"))
	_ = viper.BindPFlag("api_key", cmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("http_proxy", cmd.Flags().Lookup("http-proxy"))
	_ = viper.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
}

func (o sessionOptions) connection(cmd *cobra.Command) app.Connection {
	return app.Connection{
		Endpoint:   resolveString(cmd, o.RegistryURL, "registry_url", "registry-url"),
		APIKey:     resolveString(cmd, o.APIKey, "api_key", "api-key"),
		HTTPProxy:  resolveString(cmd, o.HTTPProxy, "http_proxy", "http-proxy"),
		TimeoutSec: resolveInt(cmd, o.TimeoutSec, "timeout", "timeout"),
		Snapshot:   resolveString(cmd, o.Snapshot, "registry_snapshot", "registry-snapshot"),
	}
}

func (o sessionOptions) cache(cmd *cobra.Command) app.CacheSettings {
	return app.CacheSettings{
		Primary:   resolveString(cmd, o.CacheRoot, "cache_root", "cache-root"),
		Fallbacks: resolveStrings(cmd, o.FallbackRoots, "fallback_roots", "fallback-root"),
	}
}

// parseProjectID turns "" or "site" into nil.
func parseProjectID(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "site") {
		return nil, nil
	}
	id, err := strconv.Atoi(trimmed)
	if err != nil || id <= 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("project must be a positive id or \"site\": " + value)
	}
	return &id, nil
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	return viper.GetStringSlice(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
