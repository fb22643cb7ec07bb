// Package apperr defines the error kinds surfaced by the session manager and
// the todo pipeline. Every failure a user can see carries a displayable
// message; the kind tells the caller what to do about it.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// Validation is a local precondition failure; no request was made.
	Validation Kind = iota + 1
	// Auth means the server rejected the credentials or the session.
	Auth
	// NotFound means the referenced id is not in the local collection.
	NotFound
	// Fetch is a failed call: non-2xx status or an unusable response body.
	Fetch
	// Network is a transport failure with no server response.
	Network
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Auth:
		return "auth"
	case NotFound:
		return "not found"
	case Fetch:
		return "fetch"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return Kind(k).String() + " error" }

// Sentinels for errors.Is.
var (
	ErrValidation error = kindSentinel(Validation)
	ErrAuth       error = kindSentinel(Auth)
	ErrNotFound   error = kindSentinel(NotFound)
	ErrFetch      error = kindSentinel(Fetch)
	ErrNetwork    error = kindSentinel(Network)
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // e.g. "todos.create"
	Message string // displayable text, server message when there was one
	Status  int    // HTTP status, 0 when no response was received
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && Kind(k) == e.Kind
}

// New returns an error of the given kind with a displayable message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Wrap classifies err as kind, keeping its displayable message and status.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: Message(err), Status: StatusOf(err), Err: err}
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return Message(e.Err)
		}
		return e.Kind.String() + " error"
	}
	return err.Error()
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or 0 when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusOf returns the first HTTP status found in err's chain.
func StatusOf(err error) int {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Status != 0 {
			return e.Status
		}
		err = errors.Unwrap(err)
	}
	return 0
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}
