package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a hiztery error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrLockTimeout    ErrorCode = "LOCK_TIMEOUT"    // 503
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// HistoryError represents a structured error with code, status, and details.
// Err holds the underlying cause, if any, so engine failures stay inspectable.
type HistoryError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *HistoryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *HistoryError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for malformed input: bad ids, dates,
// search modes, raw query text, or records that cannot be stored.
func NewInvalidRequest(msg string) *HistoryError {
	return &HistoryError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidRequestf is NewInvalidRequest with formatting.
func NewInvalidRequestf(format string, args ...any) *HistoryError {
	return NewInvalidRequest(fmt.Sprintf(format, args...))
}

// NewNotFound creates a 404 error for a single-row fetch that matched nothing.
func NewNotFound(identifier string) *HistoryError {
	return &HistoryError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("history item not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for an import file that does not exist.
func NewFileNotFound(path string) *HistoryError {
	return &HistoryError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewLockTimeout creates a 503 error for a writer that could not acquire the
// database lock inside the configured busy timeout.
func NewLockTimeout(err error) *HistoryError {
	return &HistoryError{
		Code:    ErrLockTimeout,
		Status:  503,
		Message: "database is locked",
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected engine failures.
func NewInternal(err error) *HistoryError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &HistoryError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err is, or wraps, a HistoryError with the given code.
func Is(err error, code ErrorCode) bool {
	var hErr *HistoryError
	if stderrors.As(err, &hErr) {
		return hErr.Code == code
	}
	return false
}

// CodeOf returns the code of a HistoryError, or ErrInternal for anything else.
func CodeOf(err error) ErrorCode {
	var hErr *HistoryError
	if stderrors.As(err, &hErr) {
		return hErr.Code
	}
	return ErrInternal
}
