package session

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a session operation failure.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the durable record or the live state is absent.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates malformed or missing input.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeStoreUnavailable indicates a store could not be reached in time. Retryable.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodePersistenceError indicates the durable store rejected a write.
	ErrCodePersistenceError ErrorCode = "PERSISTENCE_ERROR"
	// ErrCodeAlreadyExists indicates live state already exists for the session id.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Error is the structured error returned by every session operation.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
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

// NotFound creates a not found error for the given session.
func NotFound(sessionID string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("session not found: %s", sessionID)}
}

// InvalidInput creates an invalid input error.
func InvalidInput(msg string) *Error {
	return &Error{Code: ErrCodeInvalidInput, Message: msg}
}

// StoreUnavailable creates a store unavailable error.
func StoreUnavailable(msg string, cause error) *Error {
	return &Error{Code: ErrCodeStoreUnavailable, Message: msg, Cause: cause}
}

// PersistenceError creates a persistence error.
func PersistenceError(msg string, cause error) *Error {
	return &Error{Code: ErrCodePersistenceError, Message: msg, Cause: cause}
}

// AlreadyExists creates an already exists error for the given session.
func AlreadyExists(sessionID string) *Error {
	return &Error{Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("session state already exists: %s", sessionID)}
}

// CodeOf returns the code of a session error, or "" for any other error.
func CodeOf(err error) ErrorCode {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Code
	}
	return ""
}

// IsCode reports whether err is a session error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether the operation may succeed if repeated unchanged.
func IsRetryable(err error) bool {
	return IsCode(err, ErrCodeStoreUnavailable)
}
