package dispatch

import (
	"time"

	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
)

// Status is the terminal state of a dispatch.
type Status int

const (
	// StatusSuccess means an attempt returned a table.
	StatusSuccess Status = iota

	// StatusFailure means all permitted attempts failed, or the first
	// attempt failed permanently.
	StatusFailure

	// StatusCancelled means the caller's context ended before an attempt
	// succeeded. Cancellation is not a provider failure and is reported
	// separately.
	StatusCancelled
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrorKind mirrors the provider error classification for failed outcomes.
type ErrorKind string

const (
	// ErrorKindNone is set on successful and cancelled outcomes.
	ErrorKindNone ErrorKind = ""

	// ErrorKindTransient marks failures that were retried (or would have
	// been, had budget remained).
	ErrorKindTransient ErrorKind = "transient"

	// ErrorKindPermanent marks failures that retrying cannot fix.
	ErrorKindPermanent ErrorKind = "permanent"
)

// Outcome is the result of dispatching a single query.
type Outcome struct {
	// Status is the terminal state.
	Status Status

	// Source is the provider source the query was dispatched to.
	Source market.Source

	// Table holds the fetched data when Status is StatusSuccess.
	Table *market.Table

	// Err is the terminal error when Status is not StatusSuccess.
	// For StatusFailure it is the last attempt's error; for
	// StatusCancelled it is the context error.
	Err error

	// Kind classifies Err for failed outcomes.
	Kind ErrorKind

	// Attempts is the number of fetch attempts actually made.
	Attempts int

	// Elapsed is the wall-clock time spent, including backoff waits.
	Elapsed time.Duration
}

func successOutcome(source market.Source, table *market.Table, attempts int, elapsed time.Duration) Outcome {
	return Outcome{
		Status:   StatusSuccess,
		Source:   source,
		Table:    table,
		Attempts: attempts,
		Elapsed:  elapsed,
	}
}

func failureOutcome(source market.Source, err error, attempts int, elapsed time.Duration) Outcome {
	kind := ErrorKindPermanent
	if providers.Classify(err) == providers.ClassTransient {
		kind = ErrorKindTransient
	}
	return Outcome{
		Status:   StatusFailure,
		Source:   source,
		Err:      err,
		Kind:     kind,
		Attempts: attempts,
		Elapsed:  elapsed,
	}
}

func cancelledOutcome(source market.Source, err error, attempts int, elapsed time.Duration) Outcome {
	return Outcome{
		Status:   StatusCancelled,
		Source:   source,
		Err:      err,
		Attempts: attempts,
		Elapsed:  elapsed,
	}
}
