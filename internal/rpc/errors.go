package rpc

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes operation errors for the transport adapters.
type ErrorCode string

const (
	// CodeValidation indicates a malformed request; the store and network
	// were never touched.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeNotFound indicates an unknown feature ID.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeInternal indicates a storage failure.
	CodeInternal ErrorCode = "INTERNAL"
)

// Error is a structured operation error. Transport adapters render it as
// an error result, never a crash.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == CodeValidation
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == CodeNotFound
}

func validationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}
