/*
Package core provides the central logic for rxsub: the scan coordinator, the
shared-queue worker scheduler it dispatches through, and the result set and counters
a scan produces.
*/
package core

import (
	"errors"

	"github.com/x-stp/rxsub/internal/resolver"
)

// customError is an error type that includes a retryable flag.
// This allows components to determine if an operation that resulted in this error
// could succeed on another attempt.
type customError struct {
	message   string
	retryable bool
	cause     error
}

// NewError creates a new customError with the given message and retryable status.
func NewError(msg string, retryable bool) error {
	return &customError{
		message:   msg,
		retryable: retryable,
	}
}

// wrapError is NewError with an underlying cause reachable through errors.Is.
func wrapError(cause error, retryable bool) error {
	return &customError{
		message:   cause.Error(),
		retryable: retryable,
		cause:     cause,
	}
}

// Error implements the standard Go `error` interface.
func (e *customError) Error() string {
	return e.message
}

func (e *customError) Unwrap() error {
	return e.cause
}

// IsRetryable returns true if the error is designated as retryable, false otherwise.
func (e *customError) IsRetryable() bool {
	return e.retryable
}

// IsRetryable reports whether err, or any error it wraps, is a retryable *customError.
// Unknown error types are treated as not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *customError
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}

// ClassifyResolution marks transient DNS failures (timeouts and SERVFAIL) as
// retryable. Scans never retry a lookup; the flag feeds the run statistics.
func ClassifyResolution(err error) error {
	if err == nil {
		return nil
	}
	retryable := errors.Is(err, resolver.ErrTimeout) || errors.Is(err, resolver.ErrServerFailure)
	return wrapError(err, retryable)
}

// Common error values used within the core package.
var (
	// ErrQueueFull indicates that the work queue is at capacity. Retryable,
	// since the queue drains on its own.
	ErrQueueFull = NewError("queue full", true)
	// ErrSchedulerShutdown is returned for work submitted after Shutdown.
	ErrSchedulerShutdown = NewError("scheduler shutting down", false)
)
