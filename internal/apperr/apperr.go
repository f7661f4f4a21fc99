// Package apperr defines the error taxonomy shared by the stores, the
// services and both client surfaces (websocket and HTTP).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for reporting to the initiating client.
type Kind int

const (
	KindServer Kind = iota
	KindAuth
	KindNotMember
	KindInvalidState
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth_error"
	case KindNotMember:
		return "not_member"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	default:
		return "server_error"
	}
}

// HTTPStatus maps a kind to the pull API status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotMember:
		return http.StatusForbidden
	case KindInvalidState:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a Kind, a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, apperr.ErrNotFound) works
// for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is.
var (
	ErrAuth         = &Error{Kind: KindAuth}
	ErrNotMember    = &Error{Kind: KindNotMember}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrServer       = &Error{Kind: KindServer}
)

func Auth(msg string) error         { return &Error{Kind: KindAuth, Message: msg} }
func NotMember(msg string) error    { return &Error{Kind: KindNotMember, Message: msg} }
func InvalidState(msg string) error { return &Error{Kind: KindInvalidState, Message: msg} }
func Validation(msg string) error   { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }

// Server wraps a persistence failure.
func Server(msg string, err error) error {
	return &Error{Kind: KindServer, Message: msg, Err: err}
}

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the Kind of err; unclassified errors are server errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// PublicMessage is the text shown to the initiating client. Server errors never
// leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindServer {
			return "internal server error"
		}
		return e.Message
	}
	return "internal server error"
}
