package worker

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines exponential backoff for journal sync tasks.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// Jitter spreads the delay by a fraction of itself (0 disables),
	// so stalled tasks do not retry in lockstep.
	Jitter float64
}

// withDefaults fills unset fields with the journal worker defaults.
func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}
	return r
}

// NextDelay returns the delay before a given attempt (1-based), clamped
// to MaxDelay before jitter is applied.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if ceiling := float64(r.MaxDelay); delay > ceiling {
		delay = ceiling
	}
	if r.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * r.Jitter
	}

	d := time.Duration(delay)
	if d <= 0 {
		d = time.Second
	}
	return d
}
