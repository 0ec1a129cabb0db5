// Package retry provides exponential backoff retry functionality for
// the restroom map API client.
//
// This package implements the retry side of the resilient request layer:
// a pure backoff calculator, a per-call retry Profile, and an executor
// that drives a fallible operation until it succeeds, runs out of budget,
// or fails with an error the Profile does not consider retryable.
//
// # Features
//
//   - Exponential backoff capped at a maximum delay
//   - Symmetric ±25% jitter to desynchronize retrying clients
//   - Retryability predicates based on HTTP status codes
//   - OnRetry observer hook isolated from control flow
//   - Context-aware backoff waits
//
// # Usage
//
// Execute an operation with the default profile:
//
//	bathrooms, err := retry.Do(ctx, retry.DefaultProfile(),
//	    func(ctx context.Context) ([]Bathroom, error) {
//	        return fetch(ctx)
//	    })
//
// # Configuration
//
// Override individual fields against a base profile:
//
//	p := retry.DefaultProfile().
//	    WithMaxRetries(2).
//	    WithInitialDelay(2 * time.Second)
package retry
