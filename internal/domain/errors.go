package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a transfer engine failure. Callers branch on the
// kind, never on message text.
type ErrorKind string

const (
	// KindInvalidArgument covers malformed or missing parameters,
	// unknown ids, equal from/to ids, and non-positive or over-limit
	// amounts. Recoverable by correcting the input; never retried.
	KindInvalidArgument ErrorKind = "INVALID_ARGUMENT"

	// KindBusinessRuleViolation covers inactive benefits and
	// insufficient funds. Surfaced as-is, never retried.
	KindBusinessRuleViolation ErrorKind = "BUSINESS_RULE_VIOLATION"

	// KindVersionConflict is the store layer's stale-version signal.
	// It never escapes the engine: the optimistic strategy retries it,
	// the mixed strategy converts it to KindConcurrencyConflict.
	KindVersionConflict ErrorKind = "VERSION_CONFLICT"

	// KindConcurrencyConflict means the mixed strategy's destination
	// write lost a race. No partial mutation persists; resubmit.
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"

	// KindConcurrencyExhausted means the optimistic strategy conflicted
	// on every attempt up to the configured maximum.
	KindConcurrencyExhausted ErrorKind = "CONCURRENCY_EXHAUSTED"

	// KindStorageFailure covers store failures unrelated to version
	// conflicts. Surfaced, never silently retried.
	KindStorageFailure ErrorKind = "STORAGE_FAILURE"

	// KindInterrupted means the caller cancelled while the strategy was
	// waiting on a lock or a retry backoff. The transaction was rolled
	// back before this is returned.
	KindInterrupted ErrorKind = "INTERRUPTED"
)

// ErrVersionConflict is the sentinel the store adapters return when a
// versioned save observes a stale version. Check with errors.Is.
var ErrVersionConflict = &Error{Kind: KindVersionConflict, Message: "version conflict"}

// Error is a classified transfer engine failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same kind, so
// errors.Is(err, ErrVersionConflict) works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the classification from an error chain. Errors that
// did not originate in the engine classify as storage failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageFailure
}

// NewInvalidArgument builds an InvalidArgument error.
func NewInvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewBusinessRuleViolation builds a BusinessRuleViolation error.
func NewBusinessRuleViolation(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRuleViolation, Message: fmt.Sprintf(format, args...)}
}

// NewConcurrencyConflict builds a ConcurrencyConflict error.
func NewConcurrencyConflict(format string, args ...any) *Error {
	return &Error{Kind: KindConcurrencyConflict, Message: fmt.Sprintf(format, args...)}
}

// NewConcurrencyExhausted builds a ConcurrencyExhausted error.
func NewConcurrencyExhausted(format string, args ...any) *Error {
	return &Error{Kind: KindConcurrencyExhausted, Message: fmt.Sprintf(format, args...)}
}

// NewStorageFailure wraps a store layer error.
func NewStorageFailure(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindStorageFailure, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewInterrupted wraps a cancellation.
func NewInterrupted(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInterrupted, Message: fmt.Sprintf(format, args...), Cause: cause}
}
