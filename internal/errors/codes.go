package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error type for reminder operations.
type ErrorCode string

const (
	// ErrCodeWrongInput indicates the user supplied text or a command that cannot be resolved.
	ErrCodeWrongInput ErrorCode = "WRONG_INPUT"
	// ErrCodeGone indicates the referenced reminder no longer exists.
	ErrCodeGone ErrorCode = "GONE"
	// ErrCodeInternal indicates a broken invariant, e.g. a corrupt stored value.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error represents a structured error for reminder operations.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *Error) GetCode() ErrorCode {
	return e.Code
}

// WrongInput creates a wrong input error.
func WrongInput(msg string) *Error {
	return &Error{Code: ErrCodeWrongInput, Message: msg}
}

// WrongInputf creates a wrong input error with a formatted message.
func WrongInputf(format string, args ...any) *Error {
	return &Error{Code: ErrCodeWrongInput, Message: fmt.Sprintf(format, args...)}
}

// Gone creates an error for a reminder that is absent from the store.
func Gone(id int64) *Error {
	return &Error{
		Code:    ErrCodeGone,
		Message: fmt.Sprintf("reminder %d is gone", id),
		Context: map[string]any{"reminder_id": id},
	}
}

// Internal creates an internal error.
func Internal(msg string, cause error) *Error {
	return &Error{Code: ErrCodeInternal, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or anything it wraps, carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the error code from any error.
// Returns the provided default code if the error chain holds no *Error.
func CodeOf(err error, defaultCode ErrorCode) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return defaultCode
}
