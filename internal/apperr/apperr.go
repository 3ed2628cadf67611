// Package apperr carries the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"net/http"
)

const (
	CodeAuthenticationFailed  = "AUTHENTICATION_FAILED"
	CodeUnmappableEvent       = "UNMAPPABLE_EVENT"
	CodeOrderNotFound         = "ORDER_NOT_FOUND"
	CodePreconditionViolation = "PRECONDITION_VIOLATION"
	CodeValidationError       = "VALIDATION_ERROR"
	CodeForbidden             = "FORBIDDEN"
)

// Error is a tagged error with the HTTP status handlers should answer with.
type Error struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *Error) Error() string { return e.Message }

func AuthenticationFailed(msg string) *Error {
	return &Error{Code: CodeAuthenticationFailed, Status: http.StatusUnauthorized, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeOrderNotFound, Status: http.StatusNotFound, Message: msg}
}

func Precondition(msg string) *Error {
	return &Error{Code: CodePreconditionViolation, Status: http.StatusConflict, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidationError, Status: http.StatusBadRequest, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: msg}
}

// As unwraps err into *Error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
