// Package errs defines the error taxonomy shared across the engine. Every
// engine-internal error should wrap one of the Kind sentinels below so
// callers can dispatch on failure class with errors.Is/errors.As instead of
// string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for HTTP status mapping and metrics
// labeling. Keep this list small and stable; new failure modes should map
// onto an existing Kind unless they are genuinely novel.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnauthor    Kind = "unauthorized"
	KindTimeout     Kind = "timeout"
	KindRetryable   Kind = "retryable"
	KindPermanent   Kind = "permanent"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error is the concrete error type produced by engine packages. Message is
// safe to surface to API callers; Details carries structured context for
// logs and must never hold secret values (run it through redact.Headers or
// redact.String first if it might).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches cause to a new Error, preserving it for errors.Unwrap/errors.Is.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetails returns a copy of e with details merged in.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{Kind: e.Kind, Message: e.Message, Details: merged, cause: e.cause}
}

// KindOf unwraps err looking for an *Error and returns its Kind, or
// KindInternal if err doesn't carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Invariant panics with a clearly-labeled message when an internal
// precondition the caller is responsible for guaranteeing does not hold.
// It is never used for data the engine does not control, such as webhook
// payloads or workflow definitions loaded from disk.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("invariant violated: "+format, args...))
	}
}
