package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries the HTTP status and stable code a handler should answer with.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Validation errors are caught before any network call.
func Validation(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, "unauthenticated", err)
}

func Forbidden(code string, err error) *Error {
	return New(http.StatusForbidden, code, err)
}

func NotFound(code string, err error) *Error {
	return New(http.StatusNotFound, code, err)
}

// Conflict covers busy wizards and unmet purchase preconditions.
func Conflict(code string, err error) *Error {
	return New(http.StatusConflict, code, err)
}

// Integrity errors are recoverable: the user retries, nothing is defaulted.
func Integrity(code string, err error) *Error {
	return New(http.StatusUnprocessableEntity, code, err)
}

// Transport wraps backend/network failures.
func Transport(code string, err error) *Error {
	return New(http.StatusBadGateway, code, err)
}

// As extracts an *Error from err, falling back to a 500 wrapper.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
