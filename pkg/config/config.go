package config

import "time"

// Config is the root configuration structure for the Mekong gateway.
type Config struct {
	// Gateway contains HTTP server configuration including listen
	// address, timeouts, and CORS.
	Gateway GatewayConfig `yaml:"gateway"`

	// Auth contains token service configuration.
	Auth AuthConfig `yaml:"auth"`

	// Providers contains per-source upstream configuration. Keys are
	// source ids ("vci", "tcbs", "msn").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Dispatch contains the retry policy for upstream fetches.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Storage contains credential store configuration.
	Storage StorageConfig `yaml:"storage"`

	// Symbols contains symbol catalog configuration.
	Symbols SymbolsConfig `yaml:"symbols"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GatewayConfig contains configuration for the HTTP server.
type GatewayConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. It must cover the slowest dispatch including retries.
	// Default: 90s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds each request's handling end to end.
	// Default: 75s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	// Enabled turns CORS header handling on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists origins allowed to call the gateway.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	// Default: ["Authorization", "Content-Type"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is how long preflight results may be cached, in seconds.
	// Default: 600
	MaxAge int `yaml:"max_age"`
}

// AuthConfig contains token service configuration.
type AuthConfig struct {
	// TokenSecret is the HS256 signing secret. It has no default and is
	// usually injected via MEKONG_AUTH_TOKEN_SECRET.
	TokenSecret string `yaml:"token_secret"`

	// TokenTTL is the access token lifetime.
	// Default: 30m
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// ProviderConfig contains configuration for one upstream source.
type ProviderConfig struct {
	// Enabled controls whether an adapter is created for this source.
	// The three known sources default to enabled.
	Enabled *bool `yaml:"enabled"`

	// BaseURL overrides the source's built-in API base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent to sources that require one (msn).
	APIKey string `yaml:"api_key"`

	// UserAgent overrides the User-Agent header on upstream requests.
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds each upstream HTTP request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns caps idle connections in the adapter's pool.
	// Default: 10
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost caps idle connections per upstream host.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// HealthCheckInterval is how often the adapter probes the upstream
	// in the background. Zero disables background probing.
	// Default: 30s
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// IsEnabled reports whether the source should get an adapter.
// An unset Enabled field counts as enabled.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// DispatchConfig contains the retry policy for upstream fetches.
type DispatchConfig struct {
	// MaxAttempts is the total number of fetch attempts, including the
	// first.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is the delay before the first retry; each subsequent
	// delay doubles.
	// Default: 500ms
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffCap is the upper bound on any single delay.
	// Default: 8s
	BackoffCap time.Duration `yaml:"backoff_cap"`

	// MaxTotalWait is the cumulative backoff budget per dispatch.
	// Default: 20s
	MaxTotalWait time.Duration `yaml:"max_total_wait"`

	// AttemptTimeout bounds each individual fetch attempt.
	// Default: 30s
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// StorageConfig contains credential store configuration.
type StorageConfig struct {
	// Backend selects the store implementation: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path. Required when Backend is
	// "sqlite".
	Path string `yaml:"path"`

	// BusyTimeout is how long SQLite waits for locks before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// SymbolsConfig contains symbol catalog configuration.
type SymbolsConfig struct {
	// Path is a YAML file listing the served symbols. Empty uses the
	// built-in catalog.
	Path string `yaml:"path"`

	// Watch reloads the catalog when the file changes.
	// Default: true (only effective when Path is set)
	Watch *bool `yaml:"watch"`

	// RefreshSchedule is a standard cron expression forcing periodic
	// reloads. Empty disables scheduled refresh.
	RefreshSchedule string `yaml:"refresh_schedule"`

	// DebounceInterval is the file watcher's debounce window.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// WatchEnabled reports whether the catalog file should be watched.
func (s SymbolsConfig) WatchEnabled() bool {
	return s.Path != "" && (s.Watch == nil || *s.Watch)
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is where the exposition endpoint is mounted.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "mekong"
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name segment.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`
}

// MetricsEnabled reports whether the metrics endpoint should be mounted.
func (m MetricsConfig) MetricsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// KnownSources lists the source ids the gateway ships adapters for.
var KnownSources = []string{"vci", "tcbs", "msn"}
