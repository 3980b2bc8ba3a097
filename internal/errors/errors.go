package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category independent of its message
type ErrorCode string

const (
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Configuration errors
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Dataset and stack errors
	ErrLoadFailed           ErrorCode = "LOAD_FAILED"
	ErrLayerMissing         ErrorCode = "LAYER_MISSING"
	ErrResolutionIncomplete ErrorCode = "RESOLUTION_INCOMPLETE"
	ErrSessionClosed        ErrorCode = "SESSION_CLOSED"

	// Output errors
	ErrRender ErrorCode = "RENDER"
)

// MapError carries a code and structured details alongside the message
type MapError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

func (e *MapError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *MapError) Unwrap() error {
	return e.Wrapped
}

// Is matches any *MapError with the same code
func (e *MapError) Is(target error) bool {
	var t *MapError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a MapError with the given code and message
func New(code ErrorCode, message string) *MapError {
	return &MapError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a MapError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *MapError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a code and message. Returns nil for a nil err.
func Wrap(err error, code ErrorCode, message string) *MapError {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Wrapped = err
	return e
}

// Wrapf wraps err with a code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *MapError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetail adds a detail to the error
func (e *MapError) WithDetail(key string, value interface{}) *MapError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode reports whether err, or anything it wraps, is a MapError with code
func IsErrorCode(err error, code ErrorCode) bool {
	var e *MapError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetErrorCode returns the code of err, or ErrUnknown
func GetErrorCode(err error) ErrorCode {
	var e *MapError
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details of err, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var e *MapError
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
