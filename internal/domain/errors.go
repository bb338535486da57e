package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine tag carried by every engine error. Orchestrators
// surface exactly these four kinds; anything else bubbles to the transport
// as an internal computation failure.
type ErrorKind string

const (
	KindInvalidParams       ErrorKind = "invalid_params"
	KindUnknownStrategy     ErrorKind = "unknown_strategy"
	KindDataUnavailable     ErrorKind = "data_unavailable"
	KindInternalComputation ErrorKind = "internal_computation"
)

// Error is the engine's error type: a short machine tag plus a human
// message. DataUnavailable errors additionally carry a retry-safe flag.
type Error struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	wrapped   error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// InvalidParams reports a user-visible parameter problem. Never retried.
func InvalidParams(format string, args ...any) error {
	return &Error{Kind: KindInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// UnknownStrategy reports a strategy key missing from the registry.
func UnknownStrategy(key string) error {
	return &Error{Kind: KindUnknownStrategy, Message: fmt.Sprintf("unknown strategy: %s", key)}
}

// DataUnavailable reports that the market-data provider returned nothing
// or failed. retryable marks transient provider conditions.
func DataUnavailable(retryable bool, cause error, format string, args ...any) error {
	return &Error{
		Kind:      KindDataUnavailable,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable,
		wrapped:   cause,
	}
}

// InternalComputation reports an unexpected arithmetic condition that the
// sanitizer did not catch. Treat occurrences as bug signals.
func InternalComputation(cause error, format string, args ...any) error {
	return &Error{
		Kind:    KindInternalComputation,
		Message: fmt.Sprintf(format, args...),
		wrapped: cause,
	}
}

// KindOf extracts the error kind, defaulting to internal computation for
// errors raised outside the engine taxonomy.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalComputation
}

// IsRetryable reports the retry-safe flag on engine errors.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// MessageOf extracts the human message without the kind prefix.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
