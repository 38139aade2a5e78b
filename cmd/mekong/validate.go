package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"vinalytics-hq/mekong/pkg/cli"
	"vinalytics-hq/mekong/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file, applying defaults and
environment overrides exactly as the run command would.

Examples:
  # Validate the default config file
  mekong validate

  # Validate a specific file
  mekong validate --config /etc/mekong/config.yaml

  # Print the resolved configuration as JSON
  mekong validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("invalid configuration: %v", err))
	}

	if validateFlags.format == string(cli.FormatJSON) {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, resolvedConfig(cfg))
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  listen address:  %s\n", cfg.Gateway.ListenAddress)
	fmt.Printf("  storage backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("  providers:       %v\n", enabledProviders(cfg))
	fmt.Printf("  dispatch:        max_attempts=%d backoff_base=%s backoff_cap=%s\n",
		cfg.Dispatch.MaxAttempts, cfg.Dispatch.BackoffBase, cfg.Dispatch.BackoffCap)
	return nil
}

func enabledProviders(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Providers))
	for name, providerCfg := range cfg.Providers {
		if providerCfg.IsEnabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// resolvedConfig renders the effective configuration with secrets masked.
func resolvedConfig(cfg *config.Config) map[string]any {
	providers := make(map[string]any, len(cfg.Providers))
	for name, providerCfg := range cfg.Providers {
		entry := map[string]any{
			"enabled":  providerCfg.IsEnabled(),
			"base_url": providerCfg.BaseURL,
			"timeout":  providerCfg.Timeout.String(),
		}
		if providerCfg.APIKey != "" {
			entry["api_key"] = "********"
		}
		providers[name] = entry
	}

	return map[string]any{
		"gateway": map[string]any{
			"listen_address":   cfg.Gateway.ListenAddress,
			"read_timeout":     cfg.Gateway.ReadTimeout.String(),
			"write_timeout":    cfg.Gateway.WriteTimeout.String(),
			"request_timeout":  cfg.Gateway.RequestTimeout.String(),
			"shutdown_timeout": cfg.Gateway.ShutdownTimeout.String(),
		},
		"auth": map[string]any{
			"token_secret": "********",
			"token_ttl":    cfg.Auth.TokenTTL.String(),
		},
		"providers": providers,
		"dispatch": map[string]any{
			"max_attempts":    cfg.Dispatch.MaxAttempts,
			"backoff_base":    cfg.Dispatch.BackoffBase.String(),
			"backoff_cap":     cfg.Dispatch.BackoffCap.String(),
			"max_total_wait":  cfg.Dispatch.MaxTotalWait.String(),
			"attempt_timeout": cfg.Dispatch.AttemptTimeout.String(),
		},
		"storage": map[string]any{
			"backend": cfg.Storage.Backend,
			"path":    cfg.Storage.Path,
		},
		"symbols": map[string]any{
			"path":             cfg.Symbols.Path,
			"watch":            cfg.Symbols.WatchEnabled(),
			"refresh_schedule": cfg.Symbols.RefreshSchedule,
		},
	}
}
