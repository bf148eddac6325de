package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validationf builds an INVALID error with a formatted message.
func Validationf(format string, args ...interface{}) *Error {
	return NewError(ErrCodeInvalid, fmt.Sprintf(format, args...))
}

// Forbiddenf builds a FORBIDDEN error with a formatted message.
func Forbiddenf(format string, args ...interface{}) *Error {
	return NewError(ErrCodeForbidden, fmt.Sprintf(format, args...))
}

// Common domain errors.
var (
	ErrLotNotFound      = NewError(ErrCodeNotFound, "lot not found")
	ErrFacilityNotFound = NewError(ErrCodeNotFound, "facility not found")
	ErrHashConflict     = NewError(ErrCodeConflict, "lot content hash already registered")
	ErrUnauthorized     = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload   = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

func IsValidation(err error) bool { return IsDomainError(err, ErrCodeInvalid) }
func IsNotFound(err error) bool   { return IsDomainError(err, ErrCodeNotFound) }
func IsConflict(err error) bool   { return IsDomainError(err, ErrCodeConflict) }
func IsForbidden(err error) bool  { return IsDomainError(err, ErrCodeForbidden) }
