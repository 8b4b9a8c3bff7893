package utils

import (
	"errors"
	"fmt"
)

// AppError attaches the failing operation (Forecast, Train, LoadModel...) to
// an underlying error so transport layers can log where a request broke.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// WrapOp annotates err with the operation name; nil stays nil.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Op: op, Msg: "failed", Err: err}
}

// OpOf returns the outermost operation recorded on err, or "" when none is.
func OpOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Op
	}
	return ""
}
