package services

import (
	"context"
	"errors"
	"strings"

	"fontbox/internal/repositories"
)

// ErrorKind classifies service failures so the API layer can pick a status.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindNotFound
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a classified service error carrying user-facing messages.
// Err, when set, is the underlying cause and is never shown to callers.
type Error struct {
	Kind     ErrorKind
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrTransient  = &Error{Kind: KindTransient}
)

func validationError(messages ...string) *Error {
	return &Error{Kind: KindValidation, Messages: messages}
}

func conflictError(cause error, messages ...string) *Error {
	return &Error{Kind: KindConflict, Messages: messages, Err: cause}
}

func notFoundError(cause error, messages ...string) *Error {
	return &Error{Kind: KindNotFound, Messages: messages, Err: cause}
}

func transientError(cause error, message string) *Error {
	return &Error{Kind: KindTransient, Messages: []string{message}, Err: cause}
}

// storeError classifies an unexpected store or backend failure. Already
// classified errors pass through unchanged.
func storeError(err error, message string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return transientError(err, message+": operation timed out")
	}
	if errors.Is(err, repositories.ErrDuplicate) {
		return conflictError(err, message+": record already exists")
	}
	return transientError(err, message)
}
