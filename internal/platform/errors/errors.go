// Package errors provides the sentinel errors and wrapping helpers used
// across the enumerator. The sentinels drive outcome classification:
// modules translate them into transient or permanent probe failures.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for upstream failure scenarios
var (
	// ErrTimeout indicates an operation exceeded its time limit
	ErrTimeout = errors.New("operation timed out")

	// ErrRateLimited indicates the upstream throttled the request
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates authentication or authorization failed
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServiceUnavailable indicates a service is temporarily unavailable
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrConnectionFailed indicates a connection could not be established
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidResponse indicates a response could not be parsed
	ErrInvalidResponse = errors.New("invalid response")
)

// wrappedError wraps an error with additional context
type wrappedError struct {
	msg   string
	cause error
}

func (e *wrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *wrappedError) Unwrap() error {
	return e.cause
}

// Wrap wraps an error with additional context message.
// If err is nil, Wrap returns nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: msg, cause: err}
}

// Wrapf wraps an error with a formatted context message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: fmt.Sprintf(format, args...), cause: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf formats according to a format specifier and returns an error.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// IsTransient reports whether the error is recoverable by retrying:
// timeouts, throttling, temporary upstream unavailability and
// connection failures.
func IsTransient(err error) bool {
	return Is(err, ErrTimeout) ||
		Is(err, ErrRateLimited) ||
		Is(err, ErrServiceUnavailable) ||
		Is(err, ErrConnectionFailed)
}

// IsPermanent reports whether the error should never be retried:
// rejected credentials, missing resources, malformed responses.
func IsPermanent(err error) bool {
	return Is(err, ErrUnauthorized) ||
		Is(err, ErrNotFound) ||
		Is(err, ErrInvalidResponse)
}

// IsRateLimited reports whether the error is an upstream throttle.
func IsRateLimited(err error) bool {
	return Is(err, ErrRateLimited)
}

// IsNotFound reports whether the error is a missing resource.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}

// IsUnauthorized reports whether the error is an auth rejection.
func IsUnauthorized(err error) bool {
	return Is(err, ErrUnauthorized)
}
