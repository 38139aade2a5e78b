package gateway

import (
	"net/http"
	"time"
)

// handleRoot serves the API map for unauthenticated discovery. GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "mekong",
		"version": s.version,
		"endpoints": map[string]string{
			"register":          "POST /auth/register",
			"login":             "POST /auth/login",
			"me":                "GET /auth/me",
			"download_csv":      "POST /api/v1/download/csv",
			"download_csv_text": "POST /api/v1/download/csv-text",
			"download_multiple": "POST /api/v1/download/multiple",
			"company":           "POST /api/v1/company/{report}",
			"financial":         "POST /api/v1/financial/{report}",
			"trading":           "POST /api/v1/trading/{report}",
			"symbols":           "GET /api/v1/symbols",
			"health":            "GET /api/v1/health",
		},
	})
}

// handleSymbols returns the known symbol catalog. GET /api/v1/symbols.
func (s *Server) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	symbols := s.catalog.Symbols()
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// handleHealth is the public liveness probe. GET /api/v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleReady reports readiness: at least one registered provider must be
// healthy. GET /ready.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	healthy := 0
	sources := s.dispatcher.Sources()
	for _, source := range sources {
		if adapter := s.dispatcher.Adapter(source); adapter != nil && adapter.IsHealthy() {
			healthy++
		}
	}

	status := http.StatusOK
	state := "ready"
	if healthy == 0 {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{
		"status":            state,
		"providers_total":   len(sources),
		"providers_healthy": healthy,
	})
}

// handleProviders returns detailed per-provider health. Protected:
// upstream error detail is operator-facing. GET /api/v1/providers.
func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	providers := make(map[string]any)
	for _, source := range s.dispatcher.Sources() {
		adapter := s.dispatcher.Adapter(source)
		if adapter == nil {
			continue
		}
		health := adapter.Health()
		entry := map[string]any{
			"healthy":              health.Healthy,
			"consecutive_failures": health.ConsecutiveFailures,
		}
		if !health.LastCheck.IsZero() {
			entry["last_check"] = health.LastCheck.UTC().Format(time.RFC3339)
		}
		if !health.LastSuccess.IsZero() {
			entry["last_success"] = health.LastSuccess.UTC().Format(time.RFC3339)
		}
		if health.LastError != nil {
			entry["last_error"] = health.LastError.Error()
		}
		providers[string(source)] = entry
	}

	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}
