package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the dispatch core.
type ErrorCode string

// Dispatch error codes
const (
	ErrValidation          ErrorCode = "VALIDATION_ERROR"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrDecode              ErrorCode = "DECODE_ERROR"
	ErrFetch               ErrorCode = "FETCH_ERROR"
	ErrAdapterFailure      ErrorCode = "ADAPTER_FAILURE"
	ErrEmptyResult         ErrorCode = "EMPTY_RESULT"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
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

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// Status returns the explicit HTTP status or the default for the code.
func (e *Error) Status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return DefaultHTTPStatus(e.Code)
}

// DefaultHTTPStatus maps an error code to the status the HTTP layer reports.
func DefaultHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrValidation, ErrDecode, ErrFetch:
		return http.StatusBadRequest
	case ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case ErrAdapterFailure, ErrEmptyResult:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError reports a missing or malformed request field.
func NewValidationError(message string) *Error {
	return NewError(ErrValidation, message)
}

// NewDecodeError reports bytes that are not a readable image.
func NewDecodeError(message string, cause error) *Error {
	return NewError(ErrDecode, message).WithCause(cause)
}

// NewFetchError reports a remote image that could not be retrieved.
func NewFetchError(message string, cause error) *Error {
	return NewError(ErrFetch, message).WithCause(cause).WithRetryable(true)
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
