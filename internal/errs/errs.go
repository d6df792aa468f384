// Package errs defines the error shapes the API returns to clients.
//
// Handlers and services return *HTTPError for anything the client should
// see verbatim. Everything else is turned into a generic 500 by the global
// error handler, so internal details never leak into responses.
package errs

import "net/http"

// Response is the JSON body written for every failed request.
//
//	{ "status": "fail", "code": "NOT_FOUND", "message": "No tour found with that ID" }
type Response struct {
	// Status is "fail" for client errors (4xx) and "error" for server errors.
	Status  string       `json:"status"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
	Action  *Action      `json:"action,omitempty"`
}

// StatusFor returns the envelope status word for an HTTP status code.
func StatusFor(code int) string {
	if code >= http.StatusInternalServerError {
		return "error"
	}
	return "fail"
}

// ResponseFor builds the response body for e.
func ResponseFor(e *HTTPError) Response {
	return Response{
		Status:  StatusFor(e.Status),
		Code:    e.Code,
		Message: e.Message,
		Errors:  e.Errors,
		Action:  e.Action,
	}
}
