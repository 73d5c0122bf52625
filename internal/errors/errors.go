// Package errors provides structured error handling for websearch.
//
// Every failure that crosses a component boundary is classified by a Kind.
// Kinds map one-to-one onto the error envelope returned over HTTP and onto
// CLI exit codes, so callers can branch on classification without parsing
// messages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers and for the JSON error envelope.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindHTTPStatus        Kind = "http_status"
	KindParse             Kind = "parse"
	KindCaptchaBlocked    Kind = "captcha_blocked"
	KindUnsupportedScheme Kind = "unsupported_scheme"
	KindDimMismatch       Kind = "dim_mismatch"
	KindLockConflict      Kind = "lock_conflict"
	KindIO                Kind = "io"
	KindCancelled         Kind = "cancelled"
	KindNotFound          Kind = "not_found"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

// Error is the structured error type used throughout websearch.
type Error struct {
	// Kind is the stable classification of this error.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by Kind, enabling errors.Is against sentinel values.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail adds a key-value detail. Returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error from an existing error, preserving it as the cause.
// Returns nil if err is nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf extracts the Kind from an error chain.
// Context cancellation and deadline errors are classified even when they
// were never wrapped. Unclassified errors report KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// AsError unwraps err into a structured *Error, mirroring errors.As for
// callers inside this package where the stdlib name is shadowed.
func AsError(err error, target **Error) bool {
	return errors.As(err, target)
}

// Cause returns the innermost non-*Error cause of err, or err itself when
// there is none. Useful for os.IsNotExist style checks on wrapped errors.
func Cause(err error) error {
	for {
		var e *Error
		if !errors.As(err, &e) || e.Cause == nil {
			return err
		}
		err = e.Cause
	}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the operation that produced err is worth
// retrying. Only transient network conditions qualify; validation and
// classification errors never do.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimited:
		return true
	case KindHTTPStatus:
		// Server-side failures are transient; client errors are not.
		var e *Error
		if errors.As(err, &e) {
			return strings.HasPrefix(e.Details["status"], "5")
		}
		return false
	default:
		return false
	}
}
