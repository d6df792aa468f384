package errs

import (
	"net/http"
)

func newHTTPError(status int, message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(status)),
		Message:  message,
		Status:   status,
		Override: override,
	}
}

// NewUnauthorizedError creates a 401 error. Used for missing or invalid
// credentials and expired tokens.
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return newHTTPError(http.StatusUnauthorized, message, override)
}

// NewForbiddenError creates a 403 error.
func NewForbiddenError(message string, override bool) *HTTPError {
	return newHTTPError(http.StatusForbidden, message, override)
}

// NewBadRequestError creates a 400 error.
//
// code replaces the default "BAD_REQUEST" when non-nil. errors carries
// per-field validation problems.
func NewBadRequestError(message string, override bool, code *string, errors []FieldError, action *Action) *HTTPError {
	e := newHTTPError(http.StatusBadRequest, message, override)
	if code != nil {
		e.Code = *code
	}
	e.Errors = errors
	e.Action = action
	return e
}

// NewNotFoundError creates a 404 error.
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	e := newHTTPError(http.StatusNotFound, message, override)
	if code != nil {
		e.Code = *code
	}
	return e
}

// NewTooManyRequestsError creates a 429 error.
func NewTooManyRequestsError(message string) *HTTPError {
	return newHTTPError(http.StatusTooManyRequests, message, true)
}

// NewInternalServerError creates a 500 error with the generic status text.
// The real cause is logged, never sent.
func NewInternalServerError() *HTTPError {
	return newHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false)
}

// NewInternalServerErrorWithMessage creates a 500 error whose message is
// safe to show, e.g. "There was an error sending the email. Try again later!".
func NewInternalServerErrorWithMessage(message string) *HTTPError {
	return newHTTPError(http.StatusInternalServerError, message, true)
}

// ValidationError creates a 400 error carrying field errors.
func ValidationError(message string, fields []FieldError) *HTTPError {
	if message == "" {
		message = "Validation failed"
	}
	return NewBadRequestError(message, true, nil, fields, nil)
}
