package hybrid

import (
	"context"
	"errors"
	"fmt"
)

// Common recognition errors
var (
	// ErrRemoteFailed is returned when the remote provider returns an error
	// and no local result exists to degrade to.
	ErrRemoteFailed = errors.New("remote recognition failed")

	// ErrNoProvider is returned when a call requires a provider that was
	// not configured (e.g. remote-only recognition without a remote).
	ErrNoProvider = errors.New("no recognition provider configured")
)

// RecognitionError wraps errors with additional context about where in the
// pipeline a recognition call failed.
type RecognitionError struct {
	// Op is the operation that failed (e.g., "Recognize", "detectScript").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *RecognitionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("hybrid: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("hybrid: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *RecognitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error as a RecognitionError unless it already is one
// or is a context cancellation, which must propagate untouched so callers
// can match on context.Canceled directly.
func wrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		return err
	}
	return &RecognitionError{Op: op, Err: err, Details: details}
}
