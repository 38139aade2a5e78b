package main

import (
	"context"
	"testing"
	"time"

	"vinalytics-hq/mekong/pkg/config"
	"vinalytics-hq/mekong/pkg/market"
)

func TestBuildUserStore(t *testing.T) {
	memory, err := buildUserStore(&config.Config{Storage: config.StorageConfig{Backend: "memory"}})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	memory.Close()

	sqlite, err := buildUserStore(&config.Config{Storage: config.StorageConfig{
		Backend:     "sqlite",
		Path:        t.TempDir() + "/users.db",
		BusyTimeout: time.Second,
	}})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	sqlite.Close()

	if _, err := buildUserStore(&config.Config{Storage: config.StorageConfig{Backend: "redis"}}); err == nil {
		t.Error("unknown backend did not error")
	}
}

func TestBuildAdapterPerSource(t *testing.T) {
	for _, name := range config.KnownSources {
		adapter, err := buildAdapter(name, config.ProviderConfig{Timeout: time.Second})
		if err != nil {
			t.Fatalf("buildAdapter(%s): %v", name, err)
		}
		if adapter.Source() != market.Source(name) {
			t.Errorf("adapter source = %s, want %s", adapter.Source(), name)
		}
		adapter.Close()
	}

	if _, err := buildAdapter("bloomberg", config.ProviderConfig{}); err == nil {
		t.Error("unknown source did not error")
	}
}

func TestBuildDispatcherRequiresProviders(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Providers = map[string]config.ProviderConfig{}

	if _, err := buildDispatcher(context.Background(), cfg, nil); err == nil {
		t.Error("empty provider set did not error")
	}
}

func TestBuildDispatcherStartsHealthCheckers(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher, err := buildDispatcher(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("buildDispatcher: %v", err)
	}

	if got := len(dispatcher.Sources()); got != len(config.KnownSources) {
		t.Errorf("sources = %d, want %d", got, len(config.KnownSources))
	}

	// Close must not return before every background prober has exited.
	cancel()
	done := make(chan struct{})
	go func() {
		dispatcher.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher.Close did not finish after probers were cancelled")
	}
}

func TestBuildCatalogDefault(t *testing.T) {
	catalog, err := buildCatalog(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("buildCatalog: %v", err)
	}
	if catalog.Len() == 0 {
		t.Error("default catalog is empty")
	}
}
