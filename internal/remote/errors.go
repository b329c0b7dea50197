package remote

import (
	"errors"
	"fmt"
)

// Common remote provider errors
var (
	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrNoText is returned when the provider processed the image but
	// found no readable text.
	ErrNoText = errors.New("remote provider found no readable text")

	// ErrInvalidConfiguration is returned when required provider settings
	// are absent or malformed.
	ErrInvalidConfiguration = errors.New("invalid remote provider configuration")
)

// RemoteError wraps errors with additional context about the remote call.
type RemoteError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionProvider").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("remote: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("remote: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *RemoteError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapRemoteError wraps an error as a RemoteError if it isn't already one.
func WrapRemoteError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return err
	}
	return &RemoteError{Op: op, Err: err, Details: details}
}
