package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
)

// ErrUnknownSource is returned when a query names a source with no
// registered adapter.
var ErrUnknownSource = errors.New("no adapter registered for source")

// Recorder receives dispatch telemetry. Implementations must be safe for
// concurrent use. A nil Recorder is a no-op.
type Recorder interface {
	// RecordAttempt is called after every fetch attempt.
	RecordAttempt(source market.Source, success bool)

	// RecordRetry is called before each backoff wait.
	RecordRetry(source market.Source)

	// RecordOutcome is called once per dispatch with the terminal state.
	RecordOutcome(source market.Source, status Status, elapsed time.Duration)
}

// Dispatcher routes queries to registered adapters and retries transient
// failures according to its Policy. It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	adapters map[market.Source]providers.Adapter

	policy   Policy
	recorder Recorder
	logger   *slog.Logger

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a dispatcher with the given policy. The recorder may be nil.
func New(policy Policy, recorder Recorder) (*Dispatcher, error) {
	policy.ApplyDefaults()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dispatch policy: %w", err)
	}

	return &Dispatcher{
		adapters: make(map[market.Source]providers.Adapter),
		policy:   policy,
		recorder: recorder,
		logger:   slog.Default().With("component", "dispatch"),
		sleep:    sleepContext,
	}, nil
}

// Register adds an adapter, replacing any previous adapter for the same
// source.
func (d *Dispatcher) Register(adapter providers.Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[adapter.Source()] = adapter

	d.logger.Info("adapter registered", "source", adapter.Source())
}

// Adapter returns the adapter registered for source, or nil.
func (d *Dispatcher) Adapter(source market.Source) providers.Adapter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.adapters[source]
}

// Sources lists the sources with a registered adapter.
func (d *Dispatcher) Sources() []market.Source {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sources := make([]market.Source, 0, len(d.adapters))
	for s := range d.adapters {
		sources = append(sources, s)
	}
	return sources
}

// Policy returns the active retry policy.
func (d *Dispatcher) Policy() Policy {
	return d.policy
}

// Close closes every registered adapter. The first error wins.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for source, adapter := range d.adapters {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s adapter: %w", source, err)
		}
	}
	return firstErr
}

// Dispatch runs the query against its source's adapter, retrying transient
// failures within the policy's bounds. It never returns an error through
// the Go error channel; the Outcome carries the terminal state.
func (d *Dispatcher) Dispatch(ctx context.Context, query *market.Query) Outcome {
	start := time.Now()

	outcome := d.dispatch(ctx, query, start)
	if d.recorder != nil {
		d.recorder.RecordOutcome(outcome.Source, outcome.Status, outcome.Elapsed)
	}

	switch outcome.Status {
	case StatusSuccess:
		d.logger.Debug("dispatch succeeded",
			"source", outcome.Source,
			"symbol", query.Symbol,
			"report", query.Report,
			"attempts", outcome.Attempts,
			"elapsed", outcome.Elapsed,
		)
	case StatusCancelled:
		d.logger.Debug("dispatch cancelled",
			"source", outcome.Source,
			"symbol", query.Symbol,
			"attempts", outcome.Attempts,
		)
	default:
		d.logger.Warn("dispatch failed",
			"source", outcome.Source,
			"symbol", query.Symbol,
			"report", query.Report,
			"kind", outcome.Kind,
			"attempts", outcome.Attempts,
			"error", outcome.Err,
		)
	}
	return outcome
}

func (d *Dispatcher) dispatch(ctx context.Context, query *market.Query, start time.Time) Outcome {
	if err := query.Validate(); err != nil {
		return failureOutcome(query.Source, err, 0, time.Since(start))
	}

	adapter := d.Adapter(query.Source)
	if adapter == nil {
		err := fmt.Errorf("%w: %s", ErrUnknownSource, query.Source)
		return failureOutcome(query.Source, err, 0, time.Since(start))
	}

	var waited time.Duration
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := d.retryDelay(attempt-1, lastErr)
			if waited+delay > d.policy.MaxTotalWait {
				d.logger.Debug("retry budget exhausted",
					"source", query.Source,
					"waited", waited,
					"next_delay", delay,
				)
				break
			}
			waited += delay

			if d.recorder != nil {
				d.recorder.RecordRetry(query.Source)
			}
			d.logger.Debug("retrying query",
				"source", query.Source,
				"symbol", query.Symbol,
				"attempt", attempt,
				"max_attempts", d.policy.MaxAttempts,
				"delay", delay,
			)

			if err := d.sleep(ctx, delay); err != nil {
				return cancelledOutcome(query.Source, err, attempt-1, time.Since(start))
			}
		}

		table, err := d.attempt(ctx, adapter, query)
		attempts = attempt
		if d.recorder != nil {
			d.recorder.RecordAttempt(query.Source, err == nil)
		}
		if err == nil {
			return successOutcome(query.Source, table, attempt, time.Since(start))
		}

		// The caller going away is not a provider failure.
		if ctx.Err() != nil {
			return cancelledOutcome(query.Source, ctx.Err(), attempt, time.Since(start))
		}

		lastErr = err
		if providers.Classify(err) == providers.ClassPermanent {
			return failureOutcome(query.Source, err, attempt, time.Since(start))
		}
	}

	return failureOutcome(query.Source, lastErr, attempts, time.Since(start))
}

// attempt runs a single fetch under the per-attempt timeout.
func (d *Dispatcher) attempt(ctx context.Context, adapter providers.Adapter, query *market.Query) (*market.Table, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.policy.AttemptTimeout)
	defer cancel()

	table, err := adapter.Fetch(attemptCtx, query)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
		// Only the per-attempt deadline fired. Surface it as a timeout so
		// classification treats the attempt as transient.
		return nil, &providers.TimeoutError{
			Source:  string(query.Source),
			Timeout: d.policy.AttemptTimeout,
		}
	}
	return table, err
}

// retryDelay is the wait before the given retry, stretched to honor an
// upstream Retry-After hint when one exceeds the computed backoff.
func (d *Dispatcher) retryDelay(retry int, lastErr error) time.Duration {
	delay := d.policy.Delay(retry)

	var rateLimited *providers.RateLimitError
	if errors.As(lastErr, &rateLimited) && rateLimited.RetryAfter > delay {
		delay = rateLimited.RetryAfter
		if delay > d.policy.BackoffCap {
			delay = d.policy.BackoffCap
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
