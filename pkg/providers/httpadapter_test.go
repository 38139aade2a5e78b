package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"vinalytics-hq/mekong/pkg/market"
)

func TestHealthCheckerRunsAndStopsOnClose(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := NewHTTPAdapter(AdapterConfig{
		Source:              market.SourceVCI,
		BaseURL:             srv.URL,
		HealthCheckInterval: 5 * time.Millisecond,
	})
	adapter.StartHealthChecker(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for checks.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no background health check fired")
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		adapter.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	select {
	case <-adapter.probeStopped:
	default:
		t.Error("health checker still running after Close")
	}
}

func TestHealthCheckerDisabledWithoutInterval(t *testing.T) {
	adapter := NewHTTPAdapter(AdapterConfig{Source: market.SourceVCI})
	adapter.StartHealthChecker(context.Background())

	// Close must not block waiting for a prober that never started.
	done := make(chan struct{})
	go func() {
		adapter.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked with the checker disabled")
	}
}

func TestUnhealthyCheckBackoff(t *testing.T) {
	base := 30 * time.Second

	if got := probeBackoff(0, base); got != base {
		t.Errorf("probeBackoff(0) = %s, want %s", got, base)
	}
	if got := probeBackoff(2, base); got != 4*base {
		t.Errorf("probeBackoff(2) = %s, want %s", got, 4*base)
	}
	if got := probeBackoff(10, base); got != 5*time.Minute {
		t.Errorf("probeBackoff(10) = %s, want the 5m ceiling", got)
	}
}
