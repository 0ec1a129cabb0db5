package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// JitterFactor is the symmetric jitter applied to a backoff delay (±25%).
const JitterFactor = 0.25

// Backoff defines the interface for backoff strategies.
type Backoff interface {
	// Next returns the duration to wait before the next retry attempt.
	Next(attempt int) time.Duration
}

// ExponentialBackoff implements capped exponential backoff with optional jitter.
type ExponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	jitter  bool

	mu   sync.Mutex
	rand *rand.Rand
}

// NewExponentialBackoff creates a new exponential backoff seeded from the clock.
func NewExponentialBackoff(initial, max time.Duration, jitter bool) *ExponentialBackoff {
	//nolint:gosec // G404: jitter for retry timing is not security-sensitive
	return NewExponentialBackoffWithSource(initial, max, jitter, rand.NewSource(time.Now().UnixNano()))
}

// NewExponentialBackoffWithSource creates an exponential backoff that draws
// jitter from src. A fixed source makes the schedule deterministic.
func NewExponentialBackoffWithSource(initial, max time.Duration, jitter bool, src rand.Source) *ExponentialBackoff {
	return &ExponentialBackoff{
		initial: initial,
		max:     max,
		jitter:  jitter,
		rand:    rand.New(src), //nolint:gosec // G404: see above
	}
}

// Next implements Backoff.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if !b.jitter {
		return Delay(attempt, b.initial, b.max, false, nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return Delay(attempt, b.initial, b.max, true, b.rand.Float64)
}

// BaseDelay returns the unjittered delay for attempt:
// min(initial * 2^attempt, max).
func BaseDelay(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	backoff := float64(initial) * math.Pow(2, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}

	return time.Duration(backoff)
}

// Delay computes the wait before retrying after attempt (0-based).
//
// The schedule is min(initial * 2^attempt, max). With jitter enabled the
// result is perturbed by up to ±JitterFactor of that value using random,
// which must return values in [0, 1); a nil random uses the shared source.
// Jitter may push the result slightly above max; it is never negative.
func Delay(attempt int, initial, max time.Duration, jitter bool, random func() float64) time.Duration {
	backoff := float64(BaseDelay(attempt, initial, max))

	if jitter {
		if random == nil {
			//nolint:gosec // G404: jitter for retry timing is not security-sensitive
			random = rand.Float64
		}
		jitterRange := backoff * JitterFactor
		backoff += random()*2*jitterRange - jitterRange
	}

	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}
