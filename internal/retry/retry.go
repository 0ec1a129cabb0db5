// Package retry provides exponential backoff retry functionality.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Default retry profile constants.
const (
	// DefaultMaxRetries is the default maximum number of retry attempts.
	DefaultMaxRetries = 3

	// DefaultInitialDelay is the default delay before the first retry.
	DefaultInitialDelay = time.Second

	// DefaultMaxDelay is the default cap on a single backoff delay.
	DefaultMaxDelay = 30 * time.Second
)

// ErrInvalidProfile indicates that a retry profile violates its invariants.
var ErrInvalidProfile = errors.New("invalid retry profile")

// ShouldRetryFunc determines if an error should trigger a retry.
type ShouldRetryFunc func(error) bool

// OnRetryFunc is called before each retry attempt with the 1-based attempt
// number, the error that caused the retry and the delay about to be waited.
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// Profile configures a single retried call. Profiles are values: the With*
// methods return modified copies and never mutate the receiver.
type Profile struct {
	// Operation names the call in logs and metrics.
	Operation string

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the unjittered delay.
	MaxDelay time.Duration

	// Jitter enables ±25% randomization of each delay.
	Jitter bool

	// IsRetryable classifies errors. Nil means IsRetryable.
	IsRetryable ShouldRetryFunc

	// OnRetry observes each scheduled retry. Panics are recovered.
	OnRetry OnRetryFunc

	// Backoff overrides the delay schedule. Nil means an ExponentialBackoff
	// built from InitialDelay, MaxDelay and Jitter.
	Backoff Backoff
}

// DefaultProfile returns the default retry profile.
func DefaultProfile() Profile {
	return Profile{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Jitter:       true,
		IsRetryable:  IsRetryable,
	}
}

// Validate checks the profile invariants.
func (p Profile) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: maxRetries must be non-negative, got %d", ErrInvalidProfile, p.MaxRetries)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("%w: initialDelay must be positive, got %s", ErrInvalidProfile, p.InitialDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("%w: maxDelay %s is less than initialDelay %s",
			ErrInvalidProfile, p.MaxDelay, p.InitialDelay)
	}
	return nil
}

// WithOperation sets the operation name.
func (p Profile) WithOperation(name string) Profile {
	p.Operation = name
	return p
}

// WithMaxRetries sets the maximum retries.
func (p Profile) WithMaxRetries(n int) Profile {
	p.MaxRetries = n
	return p
}

// WithInitialDelay sets the initial delay.
func (p Profile) WithInitialDelay(d time.Duration) Profile {
	p.InitialDelay = d
	return p
}

// WithMaxDelay sets the maximum delay.
func (p Profile) WithMaxDelay(d time.Duration) Profile {
	p.MaxDelay = d
	return p
}

// WithJitter enables or disables jitter.
func (p Profile) WithJitter(enabled bool) Profile {
	p.Jitter = enabled
	return p
}

// WithRetryable sets the retryability predicate.
func (p Profile) WithRetryable(fn ShouldRetryFunc) Profile {
	p.IsRetryable = fn
	return p
}

// WithOnRetry sets the retry observer.
func (p Profile) WithOnRetry(fn OnRetryFunc) Profile {
	p.OnRetry = fn
	return p
}

// WithBackoff overrides the delay schedule.
func (p Profile) WithBackoff(b Backoff) Profile {
	p.Backoff = b
	return p
}

// Do invokes fn until it succeeds, the profile's retry budget is spent, or
// fn fails with an error the profile does not consider retryable. The last
// error returned by fn is surfaced unchanged.
//
// ctx is passed to fn and bounds the backoff waits: if it is done while
// waiting, Do returns ctx.Err().
func Do[T any](ctx context.Context, p Profile, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := p.Validate(); err != nil {
		return zero, err
	}

	shouldRetry := p.IsRetryable
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	backoff := p.Backoff
	if backoff == nil {
		backoff = NewExponentialBackoff(p.InitialDelay, p.MaxDelay, p.Jitter)
	}

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= p.MaxRetries || !shouldRetry(err) {
			return zero, err
		}

		delay := backoff.Next(attempt)
		p.notify(attempt+1, err, delay)

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// notify invokes OnRetry, discarding any panic it raises.
func (p Profile) notify(attempt int, err error, delay time.Duration) {
	if p.OnRetry == nil {
		return
	}
	defer func() { _ = recover() }()
	p.OnRetry(attempt, err, delay)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
