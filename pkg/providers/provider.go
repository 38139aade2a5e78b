package providers

import (
	"context"
	"time"

	"vinalytics-hq/mekong/pkg/market"
)

// Adapter is the contract every upstream market-data source satisfies.
// The dispatcher resolves an Adapter by source id and relies only on this
// interface plus the error classification in this package.
//
// All methods accept a context.Context for cancellation and timeout
// control. Implementations must respect context cancellation and return
// immediately when the context is cancelled. Adapters must be safe for
// concurrent invocation from multiple in-flight requests.
type Adapter interface {
	// Fetch executes one typed query against the upstream source and
	// returns the result as a table. Failures are returned as classified
	// errors from this package so the caller can decide whether to retry.
	Fetch(ctx context.Context, query *market.Query) (*market.Table, error)

	// Source returns the source id this adapter serves.
	Source() market.Source

	// HealthCheck performs a lightweight reachability probe against the
	// upstream. Returns nil when the upstream responds.
	HealthCheck(ctx context.Context) error

	// IsHealthy returns the adapter's current health status, maintained
	// from request outcomes and background probes.
	IsHealthy() bool

	// Health returns detailed health information.
	Health() AdapterHealth

	// Close releases the adapter's resources (idle connections, probes).
	Close() error
}

// AdapterHealth is a snapshot of an adapter's health state.
type AdapterHealth struct {
	// Healthy reports whether the adapter is currently considered usable.
	Healthy bool

	// LastCheck is when the health state was last updated.
	LastCheck time.Time

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int

	// LastError is the most recent failure, nil when healthy.
	LastError error

	// LastSuccess is when the adapter last completed a request.
	LastSuccess time.Time

	// TotalRequests counts all requests sent through the adapter.
	TotalRequests int64

	// FailedRequests counts requests that ended in error.
	FailedRequests int64
}
