package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"vinalytics-hq/mekong/pkg/market"
)

// AdapterConfig configures the shared HTTP base adapter.
type AdapterConfig struct {
	// Source is the source id the adapter serves.
	Source market.Source

	// BaseURL is the upstream API endpoint.
	BaseURL string

	// APIKey authenticates with the upstream, if it requires one.
	APIKey string

	// UserAgent is sent on every request. Some upstreams reject the Go
	// default agent.
	UserAgent string

	// Timeout bounds a single HTTP exchange. The dispatcher additionally
	// applies a per-attempt context deadline.
	Timeout time.Duration

	// MaxIdleConns / MaxIdleConnsPerHost / IdleConnTimeout tune the
	// connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// HealthCheckInterval is the period between background probes.
	// Zero disables the background checker.
	HealthCheckInterval time.Duration
}

// HTTPAdapter is the base implementation for HTTP-backed source adapters.
// It provides connection pooling, single-attempt request execution with
// error classification, and health monitoring. Retry is deliberately not
// handled here; the dispatcher owns the retry policy so it can be tested
// without network calls.
//
// Concrete adapters (vci, tcbs, msn) embed this struct and implement Fetch.
type HTTPAdapter struct {
	// config contains the adapter configuration.
	config AdapterConfig

	// client is the HTTP client with connection pooling.
	client *http.Client

	// health tracks the adapter's health status.
	health AdapterHealth

	// healthMu protects concurrent access to health status.
	healthMu sync.RWMutex

	// stopProbe is closed to signal the background prober to stop.
	stopProbe chan struct{}

	// probeStopped is closed when the background prober has stopped.
	probeStopped chan struct{}

	// probeStarted records whether the background prober is running, so
	// Close knows whether to wait for it.
	probeStarted atomic.Bool

	// probeOnce guards against double Close.
	probeOnce sync.Once
}

// NewHTTPAdapter creates the base adapter with connection pooling.
func NewHTTPAdapter(config AdapterConfig) *HTTPAdapter {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "mekong-gateway/1.0"
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	now := time.Now()
	return &HTTPAdapter{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		health: AdapterHealth{
			Healthy:     true, // start optimistic
			LastCheck:   now,
			LastSuccess: now,
		},
		stopProbe:    make(chan struct{}),
		probeStopped: make(chan struct{}),
	}
}

// Source returns the source id this adapter serves.
func (a *HTTPAdapter) Source() market.Source {
	return a.config.Source
}

// Config returns the adapter's configuration.
func (a *HTTPAdapter) Config() AdapterConfig {
	return a.config
}

// IsHealthy returns the current health status.
func (a *HTTPAdapter) IsHealthy() bool {
	a.healthMu.RLock()
	defer a.healthMu.RUnlock()
	return a.health.Healthy
}

// Health returns detailed health information.
func (a *HTTPAdapter) Health() AdapterHealth {
	a.healthMu.RLock()
	defer a.healthMu.RUnlock()
	return a.health
}

// updateHealth records a request or probe outcome.
func (a *HTTPAdapter) updateHealth(success bool, err error) {
	a.healthMu.Lock()
	defer a.healthMu.Unlock()

	a.health.LastCheck = time.Now()

	if success {
		a.health.Healthy = true
		a.health.ConsecutiveFailures = 0
		a.health.LastError = nil
		a.health.LastSuccess = time.Now()
		return
	}

	a.health.ConsecutiveFailures++
	a.health.LastError = err

	// Mark unhealthy after 3 consecutive failures.
	if a.health.ConsecutiveFailures >= 3 {
		a.health.Healthy = false
		slog.Warn("source marked unhealthy",
			"source", a.config.Source,
			"consecutive_failures", a.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// recordRequest counts a request against the health totals.
func (a *HTTPAdapter) recordRequest(success bool) {
	a.healthMu.Lock()
	defer a.healthMu.Unlock()

	a.health.TotalRequests++
	if !success {
		a.health.FailedRequests++
	}
}

// DoRequest performs a single HTTP request against the upstream and
// classifies the outcome. It never retries; the dispatcher decides that.
func (a *HTTPAdapter) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.config.UserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("sending request to source",
		"source", a.config.Source,
		"method", method,
		"url", url,
	)

	resp, err := a.client.Do(req)
	if err != nil {
		a.recordRequest(false)
		a.updateHealth(false, err)

		if ctx.Err() != nil {
			return nil, &TimeoutError{
				Source:  string(a.config.Source),
				Timeout: a.config.Timeout,
			}
		}
		// Network failure: surface as a transient upstream error.
		return nil, &UpstreamError{
			Source:  string(a.config.Source),
			Message: err.Error(),
			Cause:   err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		a.recordRequest(true)
		a.updateHealth(true, nil)
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	a.recordRequest(false)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rateErr := &RateLimitError{
			Source:     string(a.config.Source),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(errorBody),
		}
		a.updateHealth(false, rateErr)
		return nil, rateErr

	case resp.StatusCode == http.StatusNotFound:
		// Upstreams answer 404 for unknown tickers; classified permanent
		// through UpstreamError.
		fallthrough
	default:
		upErr := &UpstreamError{
			Source:     string(a.config.Source),
			StatusCode: resp.StatusCode,
			Message:    string(errorBody),
		}
		a.updateHealth(false, upErr)
		return nil, upErr
	}
}

// DoJSONRequest performs a JSON request and decodes the response body.
func (a *HTTPAdapter) DoJSONRequest(ctx context.Context, method, url string, reqBody, respBody any, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := a.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Source: string(a.config.Source),
			Cause:  fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Source:      string(a.config.Source),
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// HealthCheck performs a synchronous reachability probe.
func (a *HTTPAdapter) HealthCheck(ctx context.Context) error {
	headers := make(map[string]string)
	if a.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + a.config.APIKey
	}

	resp, err := a.DoRequest(ctx, http.MethodGet, a.config.BaseURL, nil, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// StartHealthChecker starts a background goroutine that periodically probes
// the upstream. It backs off while the adapter is unhealthy to reduce load
// on an already struggling upstream. A zero or negative interval disables
// the checker; calling it more than once is a no-op.
func (a *HTTPAdapter) StartHealthChecker(ctx context.Context) {
	if a.config.HealthCheckInterval <= 0 {
		return
	}
	if !a.probeStarted.CompareAndSwap(false, true) {
		return
	}
	go a.runHealthChecker(ctx)
}

// runHealthChecker is the probe loop.
func (a *HTTPAdapter) runHealthChecker(ctx context.Context) {
	defer close(a.probeStopped)

	interval := a.config.HealthCheckInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("health checker started", "source", a.config.Source, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("health checker stopped (context cancelled)", "source", a.config.Source)
			return

		case <-a.stopProbe:
			slog.Debug("health checker stopped (adapter closed)", "source", a.config.Source)
			return

		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := a.HealthCheck(checkCtx)
			cancel()

			if err != nil {
				slog.Warn("health probe failed", "source", a.config.Source, "error", err)
			}

			if !a.IsHealthy() {
				health := a.Health()
				ticker.Reset(probeBackoff(health.ConsecutiveFailures, interval))
			} else {
				ticker.Reset(interval)
			}
		}
	}
}

// Close stops the background prober, waits for it to exit, and releases
// idle connections.
func (a *HTTPAdapter) Close() error {
	a.probeOnce.Do(func() {
		close(a.stopProbe)
	})
	if a.probeStarted.Load() {
		<-a.probeStopped
	}
	a.client.CloseIdleConnections()
	slog.Info("source adapter closed", "source", a.config.Source)
	return nil
}

// probeBackoff computes the probe interval while unhealthy: base * 2^failures,
// capped at 10x the base and 5 minutes.
func probeBackoff(consecutiveFailures int, baseInterval time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return baseInterval
	}

	multiplier := 1 << uint(consecutiveFailures)
	if multiplier > 10 {
		multiplier = 10
	}

	backoff := baseInterval * time.Duration(multiplier)
	if maxBackoff := 5 * time.Minute; backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// parseRetryAfter parses the Retry-After header value. It supports both
// delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
