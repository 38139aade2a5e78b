package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "gateway.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the entire configuration, collecting all errors rather
// than stopping at the first.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateDispatch(&cfg.Dispatch)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"gateway.listen_address", "cannot be empty"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{"gateway.read_timeout", "cannot be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"gateway.write_timeout", "cannot be negative"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{"gateway.shutdown_timeout", "must be positive"})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{"gateway.request_timeout", "must be positive"})
	}
	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	if cfg.TokenSecret == "" {
		errs = append(errs, FieldError{"auth.token_secret",
			"cannot be empty (set it in the file or via MEKONG_AUTH_TOKEN_SECRET)"})
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, FieldError{"auth.token_ttl", "must be positive"})
	}
	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	known := make(map[string]bool, len(KnownSources))
	for _, s := range KnownSources {
		known[s] = true
	}

	enabled := 0
	for name, pc := range providers {
		field := fmt.Sprintf("providers.%s", name)
		if !known[name] {
			errs = append(errs, FieldError{field,
				fmt.Sprintf("unknown source (known: %s)", strings.Join(KnownSources, ", "))})
			continue
		}
		if pc.Timeout < 0 {
			errs = append(errs, FieldError{field + ".timeout", "cannot be negative"})
		}
		if pc.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		errs = append(errs, FieldError{"providers", "at least one source must be enabled"})
	}
	return errs
}

func validateDispatch(cfg *DispatchConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxAttempts < 1 {
		errs = append(errs, FieldError{"dispatch.max_attempts", "must be at least 1"})
	}
	if cfg.BackoffBase < 0 {
		errs = append(errs, FieldError{"dispatch.backoff_base", "cannot be negative"})
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		errs = append(errs, FieldError{"dispatch.backoff_cap", "cannot be below backoff_base"})
	}
	if cfg.MaxTotalWait < 0 {
		errs = append(errs, FieldError{"dispatch.max_total_wait", "cannot be negative"})
	}
	if cfg.AttemptTimeout <= 0 {
		errs = append(errs, FieldError{"dispatch.attempt_timeout", "must be positive"})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{"storage.path", "required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"storage.backend",
			fmt.Sprintf("unknown backend %q (want memory or sqlite)", cfg.Backend)})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("invalid level %q (want debug, info, warn, or error)", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("invalid format %q (want json or text)", cfg.Logging.Format)})
	}
	if cfg.Metrics.MetricsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with /"})
	}
	return errs
}
