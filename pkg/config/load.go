package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides of the form MEKONG_SECTION_FIELD
// (e.g. MEKONG_GATEWAY_LISTEN_ADDRESS). Environment variables take
// precedence over file values.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies MEKONG_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	// Gateway overrides
	if val := os.Getenv("MEKONG_GATEWAY_LISTEN_ADDRESS"); val != "" {
		cfg.Gateway.ListenAddress = val
	}
	overrideDuration("MEKONG_GATEWAY_READ_TIMEOUT", &cfg.Gateway.ReadTimeout)
	overrideDuration("MEKONG_GATEWAY_WRITE_TIMEOUT", &cfg.Gateway.WriteTimeout)
	overrideDuration("MEKONG_GATEWAY_IDLE_TIMEOUT", &cfg.Gateway.IdleTimeout)
	overrideDuration("MEKONG_GATEWAY_SHUTDOWN_TIMEOUT", &cfg.Gateway.ShutdownTimeout)
	overrideDuration("MEKONG_GATEWAY_REQUEST_TIMEOUT", &cfg.Gateway.RequestTimeout)

	// Auth overrides
	if val := os.Getenv("MEKONG_AUTH_TOKEN_SECRET"); val != "" {
		cfg.Auth.TokenSecret = val
	}
	overrideDuration("MEKONG_AUTH_TOKEN_TTL", &cfg.Auth.TokenTTL)

	// Provider overrides, one set per known source
	for _, source := range KnownSources {
		applyProviderEnvOverrides(cfg, source)
	}

	// Dispatch overrides
	if val := os.Getenv("MEKONG_DISPATCH_MAX_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Dispatch.MaxAttempts = i
		}
	}
	overrideDuration("MEKONG_DISPATCH_BACKOFF_BASE", &cfg.Dispatch.BackoffBase)
	overrideDuration("MEKONG_DISPATCH_BACKOFF_CAP", &cfg.Dispatch.BackoffCap)
	overrideDuration("MEKONG_DISPATCH_MAX_TOTAL_WAIT", &cfg.Dispatch.MaxTotalWait)
	overrideDuration("MEKONG_DISPATCH_ATTEMPT_TIMEOUT", &cfg.Dispatch.AttemptTimeout)

	// Storage overrides
	if val := os.Getenv("MEKONG_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("MEKONG_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}

	// Symbols overrides
	if val := os.Getenv("MEKONG_SYMBOLS_PATH"); val != "" {
		cfg.Symbols.Path = val
	}
	if val := os.Getenv("MEKONG_SYMBOLS_REFRESH_SCHEDULE"); val != "" {
		cfg.Symbols.RefreshSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("MEKONG_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("MEKONG_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("MEKONG_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
}

// applyProviderEnvOverrides applies overrides for one source, e.g.
// MEKONG_PROVIDER_VCI_BASE_URL.
func applyProviderEnvOverrides(cfg *Config, source string) {
	prefix := "MEKONG_PROVIDER_" + strings.ToUpper(source) + "_"
	pc := cfg.Providers[source]
	changed := false

	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		pc.BaseURL = val
		changed = true
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		pc.APIKey = val
		changed = true
	}
	if val := os.Getenv(prefix + "ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			pc.Enabled = &b
			changed = true
		}
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			pc.Timeout = d
			changed = true
		}
	}

	if changed {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderConfig)
		}
		cfg.Providers[source] = pc
	}
}

func overrideDuration(key string, target *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}
