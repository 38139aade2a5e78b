package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"vinalytics-hq/mekong/pkg/auth"
	"vinalytics-hq/mekong/pkg/cli"
	"vinalytics-hq/mekong/pkg/config"
	"vinalytics-hq/mekong/pkg/dispatch"
	"vinalytics-hq/mekong/pkg/gateway"
	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
	"vinalytics-hq/mekong/pkg/providers/msn"
	"vinalytics-hq/mekong/pkg/providers/tcbs"
	"vinalytics-hq/mekong/pkg/providers/vci"
	"vinalytics-hq/mekong/pkg/store"
	"vinalytics-hq/mekong/pkg/symbols"
	"vinalytics-hq/mekong/pkg/telemetry/logging"
	"vinalytics-hq/mekong/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Mekong gateway server",
	Long: `Start the Mekong gateway server with the specified configuration.

The server listens on the configured address, authenticates callers, and
dispatches market-data queries to the enabled upstream providers.

Examples:
  # Start with default config
  mekong run

  # Start with custom config
  mekong run --config /etc/mekong/config.yaml

  # Override listen address
  mekong run --listen 0.0.0.0:8000

  # Validate config without starting server
  mekong run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Gateway.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Telemetry
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		collector = metrics.NewCollector(metrics.Config{
			Namespace: cfg.Telemetry.Metrics.Namespace,
			Subsystem: cfg.Telemetry.Metrics.Subsystem,
		}, prometheus.NewRegistry())
	}

	// Credential store
	users, err := buildUserStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing user store: %w", err)
	}
	defer users.Close()
	fmt.Printf("✓ User store initialized (%s)\n", cfg.Storage.Backend)

	tokens, err := auth.NewTokenService(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return cli.NewConfigError("auth.token_secret", err.Error())
	}

	ctx := cli.SetupSignalHandler()

	// Provider adapters and dispatcher
	dispatcher, err := buildDispatcher(ctx, cfg, collector)
	if err != nil {
		return fmt.Errorf("initializing dispatcher: %w", err)
	}
	defer dispatcher.Close()
	fmt.Printf("✓ Providers initialized (%d sources)\n", len(dispatcher.Sources()))

	// Symbol catalog with optional file watch and scheduled refresh
	catalog, err := buildCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing symbol catalog: %w", err)
	}
	fmt.Printf("✓ Symbol catalog loaded (%d symbols)\n", catalog.Len())

	if collector != nil {
		go trackProviderHealth(ctx, dispatcher, collector)
	}

	opts := gateway.Options{
		Config:     cfg.Gateway,
		Version:    Version,
		Users:      users,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Catalog:    catalog,
	}
	if collector != nil {
		opts.HTTPRecorder = collector
		opts.MetricsHandler = collector.Handler()
		opts.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	server, err := gateway.NewServer(opts)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	fmt.Printf("✓ Mekong listening on %s\n", cfg.Gateway.ListenAddress)
	if err := server.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

func buildUserStore(cfg *config.Config) (store.UserStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteStoreWithConfig(store.SQLiteStoreConfig{
			Path:        cfg.Storage.Path,
			BusyTimeout: cfg.Storage.BusyTimeout,
		})
	case "memory":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
}

func buildDispatcher(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*dispatch.Dispatcher, error) {
	policy := dispatch.Policy{
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		BackoffBase:    cfg.Dispatch.BackoffBase,
		BackoffCap:     cfg.Dispatch.BackoffCap,
		MaxTotalWait:   cfg.Dispatch.MaxTotalWait,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
	}

	var recorder dispatch.Recorder
	if collector != nil {
		recorder = collector
	}
	dispatcher, err := dispatch.New(policy, recorder)
	if err != nil {
		return nil, err
	}

	for name, providerCfg := range cfg.Providers {
		if !providerCfg.IsEnabled() {
			continue
		}
		adapter, err := buildAdapter(name, providerCfg)
		if err != nil {
			dispatcher.Close()
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		dispatcher.Register(adapter)
		if prober, ok := adapter.(interface{ StartHealthChecker(context.Context) }); ok {
			prober.StartHealthChecker(ctx)
		}
		slog.Info("provider registered", "source", name)
	}

	if len(dispatcher.Sources()) == 0 {
		dispatcher.Close()
		return nil, fmt.Errorf("no providers enabled")
	}
	return dispatcher, nil
}

func buildAdapter(name string, cfg config.ProviderConfig) (providers.Adapter, error) {
	source, err := market.ParseSource(name)
	if err != nil {
		return nil, err
	}

	adapterCfg := providers.AdapterConfig{
		Source:              source,
		BaseURL:             cfg.BaseURL,
		APIKey:              cfg.APIKey,
		UserAgent:           cfg.UserAgent,
		Timeout:             cfg.Timeout,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		HealthCheckInterval: cfg.HealthCheckInterval,
	}

	switch source {
	case market.SourceVCI:
		return vci.NewAdapter(adapterCfg)
	case market.SourceTCBS:
		return tcbs.NewAdapter(adapterCfg)
	case market.SourceMSN:
		return msn.NewAdapter(adapterCfg)
	}
	return nil, fmt.Errorf("no adapter implementation for source %s", source)
}

func buildCatalog(ctx context.Context, cfg *config.Config) (*symbols.Catalog, error) {
	if cfg.Symbols.Path == "" {
		return symbols.NewCatalog(), nil
	}

	catalog, err := symbols.NewCatalogFromFile(cfg.Symbols.Path)
	if err != nil {
		return nil, err
	}

	if cfg.Symbols.WatchEnabled() {
		watcher, err := symbols.NewWatcher(catalog, cfg.Symbols.DebounceInterval)
		if err != nil {
			return nil, fmt.Errorf("starting symbol watcher: %w", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("symbol watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Symbols.RefreshSchedule != "" {
		scheduler := symbols.NewScheduler(catalog, cfg.Symbols.RefreshSchedule)
		if err := scheduler.Start(ctx); err != nil {
			return nil, fmt.Errorf("starting symbol refresh scheduler: %w", err)
		}
	}

	return catalog, nil
}

// trackProviderHealth periodically mirrors adapter health into the
// provider_healthy gauge.
func trackProviderHealth(ctx context.Context, dispatcher *dispatch.Dispatcher, collector *metrics.Collector) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, source := range dispatcher.Sources() {
				if adapter := dispatcher.Adapter(source); adapter != nil {
					collector.SetProviderHealth(source, adapter.IsHealthy())
				}
			}
		}
	}
}
