package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/session"
)

// ErrorCode represents a specific error type returned by the HTTP API.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the session does not exist or is no longer live.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeAlreadyExists indicates a live session with the same id exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeServiceUnavailable indicates a backing store is not reachable. Retryable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodePersistenceFailed indicates the durable store rejected a write.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// APIError represents a structured error for the HTTP API.
type APIError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status code for the error.
func (e *APIError) Status() int {
	return HTTPStatus(e.Code)
}

// Response renders the error envelope.
func (e *APIError) Response() *Response {
	return &Response{Success: false, Message: e.Message, Code: e.Code}
}

// Response is the failure envelope written for every API error.
type Response struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *APIError {
	return &APIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *APIError {
	return &APIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Internal creates an internal error.
func Internal(cause error) *APIError {
	return &APIError{Code: ErrCodeInternal, Message: "internal error", Cause: cause}
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError converts any error into an APIError. Session errors keep their
// message; anything else becomes an internal error.
func FromError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var sessErr *session.Error
	if !stderrors.As(err, &sessErr) {
		return Internal(err)
	}

	code := ErrCodeInternal
	switch sessErr.Code {
	case session.ErrCodeNotFound:
		code = ErrCodeNotFound
	case session.ErrCodeInvalidInput:
		code = ErrCodeInvalidArgument
	case session.ErrCodeAlreadyExists:
		code = ErrCodeAlreadyExists
	case session.ErrCodeStoreUnavailable:
		code = ErrCodeServiceUnavailable
	case session.ErrCodePersistenceError:
		code = ErrCodePersistenceFailed
	}
	return &APIError{Code: code, Message: sessErr.Message, Cause: sessErr.Cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	return stderrors.As(err, &apiErr) && apiErr.Code == code
}
