package fetch

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the upstream answers 429.
var ErrRateLimited = errors.New("rate limited")

// StatusError is a non-2xx, non-429 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the status is a server-side failure worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable classifies an attempt failure.
// Rate limits, 5xx and transport or I/O failures (including per-request timeouts) are
// retryable; 4xx, permanent errors and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}
