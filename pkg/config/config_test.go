package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mekong.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
auth:
  token_secret: test-secret
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Gateway.ListenAddress != "127.0.0.1:8000" {
		t.Errorf("ListenAddress = %q, want 127.0.0.1:8000", cfg.Gateway.ListenAddress)
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL = %s, want 30m", cfg.Auth.TokenTTL)
	}
	if cfg.Dispatch.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Dispatch.BackoffBase != 500*time.Millisecond {
		t.Errorf("BackoffBase = %s, want 500ms", cfg.Dispatch.BackoffBase)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
	for _, source := range KnownSources {
		pc, ok := cfg.Providers[source]
		if !ok {
			t.Errorf("no default entry for source %s", source)
			continue
		}
		if !pc.IsEnabled() {
			t.Errorf("source %s disabled by default", source)
		}
		if pc.Timeout != 30*time.Second {
			t.Errorf("%s timeout = %s, want 30s", source, pc.Timeout)
		}
	}
}

func TestLoadConfigOverridesFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
gateway:
  listen_address: "0.0.0.0:9000"
auth:
  token_secret: test-secret
  token_ttl: 1h
dispatch:
  max_attempts: 5
providers:
  msn:
    enabled: false
storage:
  backend: sqlite
  path: /tmp/users.db
`))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Gateway.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("ListenAddress = %q", cfg.Gateway.ListenAddress)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %s, want 1h", cfg.Auth.TokenTTL)
	}
	if cfg.Dispatch.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Providers["msn"].IsEnabled() {
		t.Error("msn should be disabled")
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Storage.Backend)
	}
}

func TestLoadConfigRejectsMissingSecret(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "gateway:\n  listen_address: ':8000'\n"))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	found := false
	for _, fe := range verr.Errors {
		if fe.Field == "auth.token_secret" {
			found = true
		}
	}
	if !found {
		t.Errorf("no auth.token_secret error in %v", verr)
	}
}

func TestLoadConfigRejectsUnknownSource(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalConfig+`
providers:
  bloomberg:
    base_url: https://example.com
`))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "unknown source") {
		t.Errorf("error = %v, want unknown source", err)
	}
}

func TestLoadConfigRejectsBadStorageBackend(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalConfig+"storage:\n  backend: redis\n"))
	if err == nil || !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("error = %v, want storage.backend failure", err)
	}
}

func TestLoadConfigRejectsSQLiteWithoutPath(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalConfig+"storage:\n  backend: sqlite\n"))
	if err == nil || !strings.Contains(err.Error(), "storage.path") {
		t.Errorf("error = %v, want storage.path failure", err)
	}
}

func TestLoadConfigRejectsBadDispatchPolicy(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalConfig+`
dispatch:
  backoff_base: 10s
  backoff_cap: 1s
`))
	if err == nil || !strings.Contains(err.Error(), "backoff_cap") {
		t.Errorf("error = %v, want backoff_cap failure", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEKONG_AUTH_TOKEN_SECRET", "env-secret")
	t.Setenv("MEKONG_GATEWAY_LISTEN_ADDRESS", "0.0.0.0:8080")
	t.Setenv("MEKONG_DISPATCH_MAX_ATTEMPTS", "7")
	t.Setenv("MEKONG_PROVIDER_VCI_BASE_URL", "http://localhost:9999")
	t.Setenv("MEKONG_PROVIDER_MSN_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, "gateway: {}\n"))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Auth.TokenSecret != "env-secret" {
		t.Errorf("TokenSecret = %q, want env-secret", cfg.Auth.TokenSecret)
	}
	if cfg.Gateway.ListenAddress != "0.0.0.0:8080" {
		t.Errorf("ListenAddress = %q", cfg.Gateway.ListenAddress)
	}
	if cfg.Dispatch.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Providers["vci"].BaseURL != "http://localhost:9999" {
		t.Errorf("vci BaseURL = %q", cfg.Providers["vci"].BaseURL)
	}
	if cfg.Providers["msn"].IsEnabled() {
		t.Error("msn should be disabled via env")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "gateway: [broken\n")); err == nil {
		t.Error("expected error for broken YAML, got nil")
	}
}
