package api

import (
	"errors"
	"fmt"
)

// Common client errors.
var (
	// ErrNotArray indicates a list endpoint returned something other than a JSON array.
	ErrNotArray = errors.New("response is not a JSON array")

	// ErrInvalidJSON indicates a response body that is not valid JSON.
	ErrInvalidJSON = errors.New("response is not valid JSON")

	// ErrInvalidID indicates an identifier that cannot address a resource.
	ErrInvalidID = errors.New("invalid resource id")

	// ErrCircuitOpen indicates the circuit breaker rejected the request.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// maxErrorBody bounds how much of a response body is kept on a StatusError.
const maxErrorBody = 512

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int {
	return e.Status
}

// newStatusError builds a StatusError, truncating long bodies.
func newStatusError(method, path string, status int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{
		Method: method,
		Path:   path,
		Status: status,
		Body:   string(body),
	}
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
