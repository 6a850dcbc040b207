// Package errs defines the error-kind taxonomy shared by every layer of the
// analytics core. Engines and stores return a *Error wrapping the underlying
// cause; the HTTP facade maps Kind to a status code and nothing above the
// facade ever re-derives the mapping.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories. New kinds require a spec change,
// not a new constant added in a hurry.
type Kind string

const (
	BadRequest           Kind = "bad_request"
	NotFound             Kind = "not_found"
	StoreUnavailable     Kind = "store_unavailable"
	CapabilityUnavailable Kind = "capability_unavailable"
	CapabilityQuota      Kind = "capability_quota"
	ParseError           Kind = "parse_error"
	PersistConflict      Kind = "persist_conflict"
	Timeout              Kind = "timeout"
	Cancelled            Kind = "cancelled"
	Internal             Kind = "internal"
)

// Error is the single error type used across the analytics core. Kind drives
// HTTP status mapping and retry policy; Cause is the wrapped underlying error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that wraps cause. If cause is itself an *Error, its
// Kind is preserved unless kind is explicitly different from Internal.
func Wrap(kind Kind, message string, cause error) *Error {
	if kind == Internal {
		var inner *Error
		if errors.As(cause, &inner) {
			kind = inner.Kind
		}
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal for errors that
// never went through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Internal
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
