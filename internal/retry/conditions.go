package retry

import (
	"context"
	"errors"
	"net/http"
)

// StatusCoder is implemented by errors that carry an HTTP response status.
type StatusCoder interface {
	StatusCode() int
}

// StatusCodeOf returns the HTTP status carried by err, if any.
func StatusCodeOf(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// IsRetryable is the default retryability predicate.
//
// Errors without a status (no response received) are retryable, as are
// 5xx and 429 responses. Every other status is a caller fault and is not
// retried. Permanent errors and context cancellation are never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}

	code, ok := StatusCodeOf(err)
	if !ok {
		return true
	}

	return isServerError(code) || code == http.StatusTooManyRequests
}

// RetryOnStatusCodes creates a predicate that retries only errors carrying
// one of the given HTTP status codes.
func RetryOnStatusCodes(statusCodes ...int) ShouldRetryFunc {
	codes := make(map[int]bool, len(statusCodes))
	for _, code := range statusCodes {
		codes[code] = true
	}

	return func(err error) bool {
		code, ok := StatusCodeOf(err)
		return ok && codes[code]
	}
}

// NeverRetry is a predicate that never retries.
func NeverRetry(error) bool {
	return false
}

func isServerError(code int) bool {
	return code >= 500 && code < 600
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so that IsRetryable rejects it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
