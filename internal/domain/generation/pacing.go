package generation

import "time"

// MaxConcurrency caps in-flight variants per batch.
const MaxConcurrency = 3

// PacingPolicy controls how a batch spreads load on the inference engine.
// The delay is the only backpressure the engine sees.
type PacingPolicy struct {
	// Delay separates consecutive job submissions.
	Delay time.Duration
	// Concurrency is the number of variants allowed in flight. Values <= 1 run sequentially.
	Concurrency int
}

// DefaultPacingPolicy returns the sequential 2s policy.
func DefaultPacingPolicy() PacingPolicy {
	return PacingPolicy{
		Delay:       2 * time.Second,
		Concurrency: 1,
	}
}

// normalized clamps the policy to supported values.
func (p PacingPolicy) normalized() PacingPolicy {
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.Concurrency > MaxConcurrency {
		p.Concurrency = MaxConcurrency
	}
	return p
}

// Sequential reports whether variants run one at a time.
func (p PacingPolicy) Sequential() bool {
	return p.normalized().Concurrency == 1
}
