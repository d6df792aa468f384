package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *HTTPError
		status int
		code   string
	}{
		{NewUnauthorizedError("login", true), http.StatusUnauthorized, "UNAUTHORIZED"},
		{NewForbiddenError("nope", true), http.StatusForbidden, "FORBIDDEN"},
		{NewBadRequestError("bad", true, nil, nil, nil), http.StatusBadRequest, "BAD_REQUEST"},
		{NewNotFoundError("gone", true, nil), http.StatusNotFound, "NOT_FOUND"},
		{NewTooManyRequestsError("slow down"), http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{NewInternalServerError(), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
		})
	}
}

func TestCustomCode(t *testing.T) {
	code := "DUPLICATE_KEY"
	assert.Equal(t, code, NewBadRequestError("dup", true, &code, nil, nil).Code)
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("load tour: %w", NewNotFoundError("No tour found with that ID", true, nil))

	assert.True(t, errors.Is(wrapped, &HTTPError{}))
	assert.True(t, errors.Is(wrapped, &HTTPError{Status: http.StatusNotFound}))
	assert.False(t, errors.Is(wrapped, &HTTPError{Status: http.StatusBadRequest}))
}

func TestResponseFor(t *testing.T) {
	fields := []FieldError{{Field: "name", Error: "is required"}}

	r := ResponseFor(ValidationError("", fields))
	assert.Equal(t, "fail", r.Status)
	assert.Equal(t, "Validation failed", r.Message)
	assert.Equal(t, fields, r.Errors)

	assert.Equal(t, "error", ResponseFor(NewInternalServerError()).Status)
}
