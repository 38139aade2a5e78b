// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vinalytics-hq/mekong/pkg/dispatch"
	"vinalytics-hq/mekong/pkg/market"
)

// Config controls metric registration.
type Config struct {
	// Namespace prefixes every metric name. Default: "mekong".
	Namespace string `yaml:"namespace"`

	// Subsystem is the second name segment. Default: "gateway".
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets are the histogram buckets for HTTP request
	// durations in seconds. The defaults cover the latencies of upstream
	// market-data fetches including retries (50ms - 60s).
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// Collector owns the gateway's Prometheus registry and metric instances.
// It implements dispatch.Recorder so the dispatcher reports attempts and
// retries without importing this package.
type Collector struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	dispatchAttempts *prometheus.CounterVec
	dispatchRetries  *prometheus.CounterVec
	dispatchOutcomes *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	providerHealthy  *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry. A nil registry
// allocates a fresh one, keeping the gateway's metrics separate from
// anything registered globally.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "mekong"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "gateway"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	}

	c := &Collector{registry: registry}

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route pattern, method, and status code.",
	}, []string{"route", "method", "status"})

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds, by route pattern.",
		Buckets:   cfg.RequestDurationBuckets,
	}, []string{"route"})

	c.dispatchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "dispatch_attempts_total",
		Help:      "Upstream fetch attempts, by source and result.",
	}, []string{"source", "result"})

	c.dispatchRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "dispatch_retries_total",
		Help:      "Backoff waits taken before retrying a source.",
	}, []string{"source"})

	c.dispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "dispatch_outcomes_total",
		Help:      "Terminal dispatch outcomes, by source and status.",
	}, []string{"source", "status"})

	c.dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "dispatch_duration_seconds",
		Help:      "Dispatch duration in seconds including backoff, by source.",
		Buckets:   cfg.RequestDurationBuckets,
	}, []string{"source"})

	c.providerHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "provider_healthy",
		Help:      "Whether the source's adapter is currently healthy (1) or not (0).",
	}, []string{"source"})

	registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.dispatchAttempts,
		c.dispatchRetries,
		c.dispatchOutcomes,
		c.dispatchDuration,
		c.providerHealthy,
	)
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the /metrics scrape handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, method, status).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordAttempt implements dispatch.Recorder.
func (c *Collector) RecordAttempt(source market.Source, success bool) {
	result := "error"
	if success {
		result = "success"
	}
	c.dispatchAttempts.WithLabelValues(string(source), result).Inc()
}

// RecordRetry implements dispatch.Recorder.
func (c *Collector) RecordRetry(source market.Source) {
	c.dispatchRetries.WithLabelValues(string(source)).Inc()
}

// RecordOutcome implements dispatch.Recorder.
func (c *Collector) RecordOutcome(source market.Source, status dispatch.Status, elapsed time.Duration) {
	c.dispatchOutcomes.WithLabelValues(string(source), status.String()).Inc()
	c.dispatchDuration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

// SetProviderHealth records a source adapter's current health.
func (c *Collector) SetProviderHealth(source market.Source, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.providerHealthy.WithLabelValues(string(source)).Set(value)
}
