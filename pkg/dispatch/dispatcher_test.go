package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
)

// fakeAdapter returns scripted results in order, repeating the last one.
type fakeAdapter struct {
	source  market.Source
	results []fakeResult
	calls   int
}

type fakeResult struct {
	table *market.Table
	err   error
}

func (f *fakeAdapter) Fetch(ctx context.Context, query *market.Query) (*market.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	r := f.results[i]
	return r.table, r.err
}

func (f *fakeAdapter) Source() market.Source                 { return f.source }
func (f *fakeAdapter) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeAdapter) IsHealthy() bool                       { return true }
func (f *fakeAdapter) Health() providers.AdapterHealth      { return providers.AdapterHealth{Healthy: true} }
func (f *fakeAdapter) Close() error                          { return nil }

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     4 * time.Millisecond,
		MaxTotalWait:   time.Second,
		AttemptTimeout: time.Second,
	}
}

func newTestDispatcher(t *testing.T, policy Policy, adapter providers.Adapter) *Dispatcher {
	t.Helper()

	d, err := New(policy, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if adapter != nil {
		d.Register(adapter)
	}
	return d
}

func historyQuery(source market.Source) *market.Query {
	r, _ := market.NewDateRange("2024-01-01", "2024-01-31")
	return &market.Query{
		Symbol: "VCB",
		Source: source,
		Report: market.ReportPriceHistory,
		Range:  r,
	}
}

func transientErr() error {
	return &providers.UpstreamError{Source: "vci", StatusCode: 503, Message: "unavailable"}
}

func permanentErr() error {
	return &providers.SymbolNotFoundError{Source: "vci", Symbol: "NOPE"}
}

func TestDispatchSuccessFirstAttempt(t *testing.T) {
	table := market.NewTable(providers.HistoryColumns...)
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{{table: table}}}
	d := newTestDispatcher(t, fastPolicy(), adapter)

	outcome := d.Dispatch(context.Background(), historyQuery(market.SourceVCI))

	if outcome.Status != StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", outcome.Attempts)
	}
	if outcome.Table != table {
		t.Error("Table not passed through")
	}
}

func TestDispatchRetriesTransientThenSucceeds(t *testing.T) {
	table := market.NewTable(providers.HistoryColumns...)
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{
		{err: transientErr()},
		{err: transientErr()},
		{table: table},
	}}
	d := newTestDispatcher(t, fastPolicy(), adapter)

	outcome := d.Dispatch(context.Background(), historyQuery(market.SourceVCI))

	if outcome.Status != StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}
	if adapter.calls != 3 {
		t.Errorf("adapter calls = %d, want 3", adapter.calls)
	}
}

func TestDispatchExhaustsAttempts(t *testing.T) {
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{{err: transientErr()}}}
	d := newTestDispatcher(t, fastPolicy(), adapter)

	outcome := d.Dispatch(context.Background(), historyQuery(market.SourceVCI))

	if outcome.Status != StatusFailure {
		t.Fatalf("Status = %v, want failure", outcome.Status)
	}
	if outcome.Kind != ErrorKindTransient {
		t.Errorf("Kind = %q, want transient", outcome.Kind)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}

	var upstream *providers.UpstreamError
	if !errors.As(outcome.Err, &upstream) {
		t.Errorf("Err = %v, want UpstreamError", outcome.Err)
	}
}

func TestDispatchPermanentFailsImmediately(t *testing.T) {
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{{err: permanentErr()}}}
	d := newTestDispatcher(t, fastPolicy(), adapter)

	outcome := d.Dispatch(context.Background(), historyQuery(market.SourceVCI))

	if outcome.Status != StatusFailure {
		t.Fatalf("Status = %v, want failure", outcome.Status)
	}
	if outcome.Kind != ErrorKindPermanent {
		t.Errorf("Kind = %q, want permanent", outcome.Kind)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (no retry on permanent errors)", outcome.Attempts)
	}
}

func TestDispatchUnknownSource(t *testing.T) {
	d := newTestDispatcher(t, fastPolicy(), nil)

	outcome := d.Dispatch(context.Background(), historyQuery(market.SourceVCI))

	if outcome.Status != StatusFailure {
		t.Fatalf("Status = %v, want failure", outcome.Status)
	}
	if !errors.Is(outcome.Err, ErrUnknownSource) {
		t.Errorf("Err = %v, want ErrUnknownSource", outcome.Err)
	}
	if outcome.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", outcome.Attempts)
	}
}

func TestDispatchInvalidQuery(t *testing.T) {
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{{table: market.NewTable()}}}
	d := newTestDispatcher(t, fastPolicy(), adapter)

	outcome := d.Dispatch(context.Background(), &market.Query{
		Symbol: "VC", // too short
		Source: market.SourceVCI,
		Report: market.ReportPriceHistory,
	})

	if outcome.Status != StatusFailure {
		t.Fatalf("Status = %v, want failure", outcome.Status)
	}
	if outcome.Kind != ErrorKindPermanent {
		t.Errorf("Kind = %q, want permanent", outcome.Kind)
	}
	if adapter.calls != 0 {
		t.Errorf("adapter calls = %d, want 0", adapter.calls)
	}
}

func TestDispatchCancelledDuringBackoff(t *testing.T) {
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{{err: transientErr()}}}
	d := newTestDispatcher(t, fastPolicy(), adapter)

	ctx, cancel := context.WithCancel(context.Background())
	d.sleep = func(ctx context.Context, delay time.Duration) error {
		cancel()
		return ctx.Err()
	}

	outcome := d.Dispatch(ctx, historyQuery(market.SourceVCI))

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", outcome.Err)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", outcome.Attempts)
	}
}

func TestDispatchCancelledDuringAttempt(t *testing.T) {
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{{err: transientErr()}}}
	d := newTestDispatcher(t, fastPolicy(), adapter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := d.Dispatch(ctx, historyQuery(market.SourceVCI))

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
}

func TestDispatchRespectsTotalWaitBudget(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 5
	policy.BackoffBase = 1
	policy.BackoffCap = 1
	policy.MaxTotalWait = 1 // one 1ns retry fits, two do not

	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{{err: transientErr()}}}
	d := newTestDispatcher(t, policy, adapter)
	d.sleep = func(ctx context.Context, delay time.Duration) error { return nil }

	outcome := d.Dispatch(context.Background(), historyQuery(market.SourceVCI))

	if outcome.Status != StatusFailure {
		t.Fatalf("Status = %v, want failure", outcome.Status)
	}
	if adapter.calls != 2 {
		t.Errorf("adapter calls = %d, want 2 (budget allows a single retry)", adapter.calls)
	}
	if outcome.Attempts != 2 {
		t.Errorf("Attempts = %d, want the 2 attempts actually made", outcome.Attempts)
	}
}

func TestDispatchHonorsRetryAfter(t *testing.T) {
	policy := fastPolicy()
	adapter := &fakeAdapter{source: market.SourceVCI, results: []fakeResult{
		{err: &providers.RateLimitError{Source: "vci", RetryAfter: 3 * time.Millisecond}},
		{table: market.NewTable(providers.HistoryColumns...)},
	}}
	d := newTestDispatcher(t, policy, adapter)

	var slept []time.Duration
	d.sleep = func(ctx context.Context, delay time.Duration) error {
		slept = append(slept, delay)
		return nil
	}

	outcome := d.Dispatch(context.Background(), historyQuery(market.SourceVCI))

	if outcome.Status != StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}
	if len(slept) != 1 {
		t.Fatalf("sleeps = %d, want 1", len(slept))
	}
	if slept[0] < 3*time.Millisecond {
		t.Errorf("delay = %s, want at least the Retry-After hint of 3ms", slept[0])
	}
}

func TestPolicyDelayBounds(t *testing.T) {
	policy := Policy{
		MaxAttempts:    4,
		BackoffBase:    500 * time.Millisecond,
		BackoffCap:     8 * time.Second,
		MaxTotalWait:   20 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}

	// Exponential floor per retry: 500ms, 1s, 2s, ... with up to half the
	// base added as jitter, and everything clamped to the cap.
	for retry := 1; retry <= 6; retry++ {
		floor := time.Duration(500*time.Millisecond) << (retry - 1)
		ceil := floor + policy.BackoffBase/2
		if floor > policy.BackoffCap {
			floor = policy.BackoffCap
		}
		if ceil > policy.BackoffCap {
			ceil = policy.BackoffCap
		}
		for i := 0; i < 50; i++ {
			delay := policy.Delay(retry)
			if delay > ceil {
				t.Fatalf("Delay(%d) = %s, exceeds bound %s", retry, delay, ceil)
			}
			if delay < floor {
				t.Fatalf("Delay(%d) = %s, below floor %s", retry, delay, floor)
			}
		}
	}
}

func TestPolicyDelayNeverDecreases(t *testing.T) {
	policies := []Policy{
		{BackoffBase: time.Second, BackoffCap: 8 * time.Second},
		{BackoffBase: 8 * time.Second, BackoffCap: 8 * time.Second},
	}

	for _, policy := range policies {
		for i := 0; i < 50; i++ {
			var prev time.Duration
			for retry := 1; retry <= 8; retry++ {
				delay := policy.Delay(retry)
				if delay < prev {
					t.Fatalf("Delay(%d) = %s decreased from %s (base %s, cap %s)",
						retry, delay, prev, policy.BackoffBase, policy.BackoffCap)
				}
				if delay > policy.BackoffCap {
					t.Fatalf("Delay(%d) = %s exceeds cap %s", retry, delay, policy.BackoffCap)
				}
				prev = delay
			}
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr bool
	}{
		{"defaults valid", func(p *Policy) {}, false},
		{"zero attempts", func(p *Policy) { p.MaxAttempts = -1 }, true},
		{"cap below base", func(p *Policy) { p.BackoffCap = p.BackoffBase / 2 }, true},
		{"negative total wait", func(p *Policy) { p.MaxTotalWait = -time.Second }, true},
		{"negative attempt timeout", func(p *Policy) { p.AttemptTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultPolicy()
			tt.mutate(&policy)
			err := policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
