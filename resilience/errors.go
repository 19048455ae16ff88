package resilience

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrTransient marks an attempt failure that is worth retrying
	// (network, timeout, empty response, invalid structure).
	ErrTransient = errors.New("resilience: transient invocation error")

	// ErrTerminal marks a failure that no retry can fix
	// (malformed request, auth failure). It short-circuits remaining attempts.
	ErrTerminal = errors.New("resilience: terminal invocation error")

	// ErrValidation is returned when a raw result fails its validator.
	// Validation failures are always retryable and never cached.
	ErrValidation = errors.New("resilience: result failed validation")

	// ErrEmptyResult is returned when the remote call produced no usable output.
	ErrEmptyResult = errors.New("resilience: empty result")

	// ErrMaxRetriesExceeded is returned when max retry attempts are exhausted.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrTimeout is returned when an attempt times out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrNilOperation is returned when an Invocation has no Operation.
	ErrNilOperation = errors.New("resilience: operation is nil")
)

// ErrorClass is the retry classification of an attempt error.
type ErrorClass int

const (
	// ClassTransient errors are retried.
	ClassTransient ErrorClass = iota
	// ClassTerminal errors stop the retry loop.
	ClassTerminal
)

// String returns the string representation of the class.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }

func (e *terminalError) Unwrap() []error { return []error{ErrTerminal, e.err} }

// Terminal wraps err so DefaultClassify treats it as non-retryable.
// errors.Is(Terminal(err), ErrTerminal) and errors.Is(Terminal(err), err) both hold.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTerminal) {
		return err
	}
	return &terminalError{err: err}
}

// Validation returns an ErrValidation error with a formatted reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DefaultClassify treats every error as transient unless it wraps
// ErrTerminal or is a context cancellation of the caller.
func DefaultClassify(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrTerminal):
		return ClassTerminal
	case errors.Is(err, context.Canceled):
		return ClassTerminal
	default:
		return ClassTransient
	}
}
