package errors

import (
	"errors"
	"fmt"
)

// Standard error codes shared across pkg/* and internal/* callers.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeInternal        = "INTERNAL"
	CodeForbidden       = "FORBIDDEN"
)

// AppError is the structured error type used throughout the codebase.
// It carries a stable Code for programmatic handling, a human-readable
// Message, and an optional wrapped Err for root-cause chaining.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError with an explicit code.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrap attaches additional context to err without discarding its code
// when err is already an *AppError; otherwise it produces an internal
// error carrying the original as its cause.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Code: appErr.Code, Message: message + ": " + appErr.Message, Err: appErr.Err}
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

func NotFound(message string, err error) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Err: err}
}

func Conflict(message string, err error) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Err: err}
}

func InvalidArgument(message string, err error) *AppError {
	return &AppError{Code: CodeInvalidArgument, Message: message, Err: err}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{Code: CodeForbidden, Message: message, Err: err}
}

// Is reports whether err (or any error it wraps) is an *AppError with
// the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// As is re-exported so callers need only import this package for the
// standard error-chain inspection helpers.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
