package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch without string matching.
type ErrorKind string

const (
	KindInvalidDate     ErrorKind = "invalid_date"
	KindAccountNotFound ErrorKind = "account_not_found"
	KindMissingData     ErrorKind = "missing_data"
	KindCalculation     ErrorKind = "calculation_error"
	KindValidation      ErrorKind = "validation_error"
)

// Error is the typed error returned across the engine's public boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Sentinels for errors.Is; only the kind is compared.
var (
	ErrInvalidDate     = &Error{Kind: KindInvalidDate, Message: "invalid date"}
	ErrAccountNotFound = &Error{Kind: KindAccountNotFound, Message: "account not found"}
	ErrMissingData     = &Error{Kind: KindMissingData, Message: "missing data"}
	ErrCalculation     = &Error{Kind: KindCalculation, Message: "calculation error"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "validation error"}

	// ErrInvalidAmount is kept for callers that only care about amount parsing.
	ErrInvalidAmount = &Error{Kind: KindCalculation, Message: "invalid amount"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidDatef(format string, args ...any) *Error {
	return newError(KindInvalidDate, format, args...)
}

func AccountNotFoundf(format string, args ...any) *Error {
	return newError(KindAccountNotFound, format, args...)
}

func MissingDataf(format string, args ...any) *Error {
	return newError(KindMissingData, format, args...)
}

func Calculationf(format string, args ...any) *Error {
	return newError(KindCalculation, format, args...)
}

func Validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// WrapCalculation turns an unexpected failure into a calculation error,
// leaving typed errors untouched.
func WrapCalculation(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return newError(KindCalculation, format, args...).wrap(err)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}
