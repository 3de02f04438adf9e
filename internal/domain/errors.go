package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Classify with errors.Is.
var (
	ErrEntityNotFound           = errors.New("entity not found")
	ErrInvalidTaskStatus        = errors.New("invalid task status")
	ErrInvalidContractStatus    = errors.New("invalid contract status")
	ErrInvalidClientRole        = errors.New("invalid client role")
	ErrInvalidClientStatus      = errors.New("invalid client status")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrConfirmationMismatch     = errors.New("confirmation codes do not match")
	ErrUnavailableRoleOperation = errors.New("operation unavailable for role")
	ErrUnavailableTransition    = errors.New("unavailable status transition")
	ErrConcurrentModification   = errors.New("concurrent modification")
	ErrInvalidInput             = errors.New("invalid input")
	ErrUnauthenticated          = errors.New("authentication required")
	ErrInternal                 = errors.New("internal error")
)

// Error carries a kind sentinel, a human message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind error, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsDomain reports whether err was classified with one of the kinds above.
func IsDomain(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// IsRetryable reports whether err is a transient conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
