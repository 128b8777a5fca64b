package service

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Test with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrPaymentRequired = errors.New("payment required")
	ErrValidation      = errors.New("validation failed")
)

// Error carries a kind and a message meant for the caller.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.kind }

// KindOf returns a stable identifier for err's kind, or "internal".
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPaymentRequired):
		return "payment_required"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
