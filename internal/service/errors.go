package service

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation   = errors.New("ValidationError")
	ErrNotFound     = errors.New("NotFoundError")
	ErrConflict     = errors.New("ConflictError")
	ErrEmptyCart    = errors.New("EmptyCartError")
	ErrUnauthorized = errors.New("UnauthorizedError")
	ErrForbidden    = errors.New("ForbiddenError")
)

// Error carries a kind plus a caller-safe message
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

// Kind returns the kind sentinel of err, or nil for unclassified errors
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrEmptyCart, ErrUnauthorized, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Message returns the caller-safe message of a classified error
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
