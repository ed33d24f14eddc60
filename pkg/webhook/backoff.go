package webhook

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy calculates retry delays for transient commit failures.
// Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay before the given retry attempt.
	// Attempt starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter. Jitter
// spreads retries so concurrent handlers do not hammer a recovering store
// in lockstep.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval returns min(InitialInterval * Multiplier^(attempt-1) * (1 ± Jitter), MaxInterval).
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial == 0 {
		initial = time.Second
	}
	maxDelay := e.MaxInterval
	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))

	if e.JitterFactor > 0 {
		randomJitter := (rand.Float64()*2 - 1) * e.JitterFactor
		interval = interval * (1 + randomJitter)
	}

	if interval > float64(maxDelay) {
		interval = float64(maxDelay)
	}
	return time.Duration(interval)
}

// FixedBackoff returns a constant delay between retries.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// DefaultBackoffStrategy returns the backoff used for store commit retries:
// short first delay for transient blips, capped growth, a little jitter.
func DefaultBackoffStrategy() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		JitterFactor:    0.1,
	}
}
