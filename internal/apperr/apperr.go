// Package apperr defines the closed set of failure kinds returned by the
// authentication core. Transports map a Kind to a protocol status; the
// Message is safe to show to clients and never carries the cause.
package apperr

import "errors"

type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidCredentials
	KindInvalidToken
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindIntegrity
	KindInvalidInput
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidToken:
		return "invalid_token"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a tagged failure. Two Errors match under errors.Is when their
// kinds are equal, so callers can compare against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken, Message: "invalid or expired token"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrIntegrity          = &Error{Kind: KindIntegrity, Message: "internal error"}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "already exists"}
)

// New returns an Error of the given kind with a client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags cause with kind. The message defaults to the sentinel's message.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: defaultMessage(kind), cause: cause}
}

// WithCause returns a copy of e carrying cause for logging.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf reports the kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return defaultMessage(KindInternal)
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindInvalidCredentials:
		return ErrInvalidCredentials.Message
	case KindInvalidToken:
		return ErrInvalidToken.Message
	case KindUnauthorized:
		return ErrUnauthorized.Message
	case KindForbidden:
		return ErrForbidden.Message
	case KindNotFound:
		return ErrNotFound.Message
	case KindInvalidInput:
		return ErrInvalidInput.Message
	case KindConflict:
		return ErrConflict.Message
	default:
		return "internal error"
	}
}
