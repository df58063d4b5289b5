package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed store call.
type ErrorKind int

const (
	// KindTransport covers network failures, timeouts and anything unexpected.
	KindTransport ErrorKind = iota

	// KindValidation is a store rejection of the request payload.
	KindValidation

	// KindAuth means the session is missing, expired or not allowed.
	KindAuth

	// KindNotFound means the addressed row does not exist.
	KindNotFound

	// KindConflict means the row violates a uniqueness or state constraint.
	KindConflict

	// KindRemote is any other error reported by the store itself.
	KindRemote
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed failure every backend returns.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// Reported reports whether the store itself produced the error.
func (e *Error) Reported() bool {
	return e.Kind != KindTransport
}

// Remote creates a store-reported error.
func Remote(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Transport wraps an unexpected failure.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

// ErrNotSignedIn is returned by store calls made without a session.
var ErrNotSignedIn = Remote(KindAuth, "not signed in")

// AsError converts err to *Error. Untyped errors are treated as transport failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Transport(err)
}

// Describe returns the user-facing error for a failed call: store-reported
// messages are kept verbatim, everything else becomes fallback.
func Describe(err error, fallback string) *Error {
	e := AsError(err)
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindValidation, KindAuth, KindNotFound, KindConflict, KindRemote:
		if e.Message == "" {
			return &Error{Kind: e.Kind, Message: fallback, Err: e}
		}
		return e
	case KindTransport:
		if errors.Is(e.Err, context.DeadlineExceeded) {
			return &Error{Kind: KindTransport, Message: fallback + ": request timed out", Err: e.Err}
		}
		return &Error{Kind: KindTransport, Message: fallback, Err: e.Err}
	default:
		return &Error{Kind: KindTransport, Message: fallback, Err: e}
	}
}
