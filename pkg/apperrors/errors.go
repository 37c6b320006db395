// Package apperrors defines the error kinds surfaced by the engine.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error. The set is closed; callers switch on it
// to decide whether to retry, degrade, or surface the failure.
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindUnavailable      Kind = "unavailable"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindValidationFailed Kind = "validation_failed"
	KindGenerationFailed Kind = "generation_failed"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// Error is the engine's error type. It wraps an underlying cause, carries a
// kind, a recoverable flag, and a small structured context map for logging.
type Error struct {
	Kind        Kind
	Recoverable bool
	Hint        string
	Context     map[string]any
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Hint)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind with no underlying cause.
func New(kind Kind, recoverable bool, hint string) *Error {
	return &Error{Kind: kind, Recoverable: recoverable, Hint: hint}
}

// Wrap attaches a kind and recoverability to an underlying cause.
// Wrapping nil returns nil.
func Wrap(err error, kind Kind, recoverable bool) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Recoverable: recoverable, cause: err}
}

// WithContext adds a key/value pair to the error's context map.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithHint sets the user-facing hint.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the kind of err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsRecoverable reports whether err is marked recoverable. Errors that do
// not carry a kind are treated as non-recoverable.
func IsRecoverable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Recoverable
	}
	return false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
