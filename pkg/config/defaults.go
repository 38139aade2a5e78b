package config

import "time"

// ApplyDefaults fills unset configuration fields with their documented
// defaults. It is idempotent.
func ApplyDefaults(cfg *Config) {
	applyGatewayDefaults(&cfg.Gateway)
	applyAuthDefaults(&cfg.Auth)
	applyProviderDefaults(cfg)
	applyDispatchDefaults(&cfg.Dispatch)
	applyStorageDefaults(&cfg.Storage)
	applySymbolsDefaults(&cfg.Symbols)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:8000"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 90 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 75 * time.Second
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = 1 << 20
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = []string{"Authorization", "Content-Type"}
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = 600
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 30 * time.Minute
	}
}

func applyProviderDefaults(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	// Every known source gets an entry so deployments only list the
	// sources they want to change.
	for _, source := range KnownSources {
		pc := cfg.Providers[source]
		if pc.Timeout == 0 {
			pc.Timeout = 30 * time.Second
		}
		if pc.MaxIdleConns == 0 {
			pc.MaxIdleConns = 10
		}
		if pc.MaxIdleConnsPerHost == 0 {
			pc.MaxIdleConnsPerHost = 10
		}
		if pc.IdleConnTimeout == 0 {
			pc.IdleConnTimeout = 90 * time.Second
		}
		if pc.HealthCheckInterval == 0 {
			pc.HealthCheckInterval = 30 * time.Second
		}
		cfg.Providers[source] = pc
	}
}

func applyDispatchDefaults(cfg *DispatchConfig) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = 8 * time.Second
	}
	if cfg.MaxTotalWait == 0 {
		cfg.MaxTotalWait = 20 * time.Second
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
}

func applySymbolsDefaults(cfg *SymbolsConfig) {
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "mekong"
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "gateway"
	}
}
