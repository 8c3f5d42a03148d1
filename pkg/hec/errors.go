package hec

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the public API. Check with errors.Is.
var (
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("hec: client closed")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("hec: invalid configuration")
)

// SerializationError reports an event that could not be encoded as JSON.
// The event was not added to the batch and no counter advanced.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("hec: event not serializable: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// StatusError reports a delivery attempt the collector answered with a
// non-200 status.
type StatusError struct {
	// Code is the HTTP status returned by the collector.
	Code int

	// Body holds the start of the response body for diagnostics.
	Body string

	// Retryable indicates the status was in the retryable set.
	Retryable bool
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hec: collector returned %d", e.Code)
	}
	return fmt.Sprintf("hec: collector returned %d: %s", e.Code, e.Body)
}

// TransportError reports a delivery attempt that failed before any HTTP
// status was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hec: request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RetryExhaustedError reports a batch discarded because every allowed
// delivery attempt failed. Last carries the failure seen on the final
// attempt, a StatusError or a TransportError.
type RetryExhaustedError struct {
	// Attempts is the total number of delivery attempts made.
	Attempts int

	// Last is the failure observed on the final attempt.
	Last error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("hec: batch discarded after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// isDeliveryFailure reports whether err describes an ordinary delivery
// outcome. Implicit flushes swallow these (metrics and logs carry them);
// anything else, such as cancellation, must reach the caller.
func isDeliveryFailure(err error) bool {
	var statusErr *StatusError
	var exhaustedErr *RetryExhaustedError
	return errors.As(err, &statusErr) || errors.As(err, &exhaustedErr)
}
