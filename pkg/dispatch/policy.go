package dispatch

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy bounds the retry behavior of a dispatcher.
type Policy struct {
	// MaxAttempts is the total number of fetch attempts, including the
	// first. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is the delay before the first retry. Each subsequent
	// delay doubles. Default: 500ms.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffCap is the upper bound on any single delay. Default: 8s.
	BackoffCap time.Duration `yaml:"backoff_cap"`

	// MaxTotalWait is the budget for cumulative backoff waiting across
	// all retries of one dispatch. A retry whose delay would exceed the
	// remaining budget is not made. Default: 20s.
	MaxTotalWait time.Duration `yaml:"max_total_wait"`

	// AttemptTimeout bounds each individual fetch attempt. A timed-out
	// attempt counts as a transient failure. Default: 30s.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// DefaultPolicy returns the policy used when configuration leaves the
// dispatch section empty.
func DefaultPolicy() Policy {
	p := Policy{}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (p *Policy) ApplyDefaults() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	if p.BackoffBase == 0 {
		p.BackoffBase = 500 * time.Millisecond
	}
	if p.BackoffCap == 0 {
		p.BackoffCap = 8 * time.Second
	}
	if p.MaxTotalWait == 0 {
		p.MaxTotalWait = 20 * time.Second
	}
	if p.AttemptTimeout == 0 {
		p.AttemptTimeout = 30 * time.Second
	}
}

// Validate checks the policy for nonsensical values.
func (p *Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BackoffBase < 0 {
		return fmt.Errorf("backoff_base cannot be negative, got %s", p.BackoffBase)
	}
	if p.BackoffCap < p.BackoffBase {
		return fmt.Errorf("backoff_cap (%s) cannot be below backoff_base (%s)", p.BackoffCap, p.BackoffBase)
	}
	if p.MaxTotalWait < 0 {
		return fmt.Errorf("max_total_wait cannot be negative, got %s", p.MaxTotalWait)
	}
	if p.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be positive, got %s", p.AttemptTimeout)
	}
	return nil
}

// Delay returns the backoff before the given retry. The first retry is
// retry 1. Jitter of up to half the base is added to the uncapped
// exponential term before applying BackoffCap, so successive delays never
// decrease and never exceed the cap.
func (p *Policy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	exp := math.Pow(2, float64(retry-1)) * float64(p.BackoffBase)
	if exp <= 0 || exp >= float64(p.BackoffCap) {
		return p.BackoffCap
	}
	delay := time.Duration(exp)
	if jitter := p.BackoffBase / 2; jitter > 0 {
		delay += rand.N(jitter)
	}
	if delay > p.BackoffCap {
		delay = p.BackoffCap
	}
	return delay
}
