// Package handler is the HTTP layer between the router and the services.
//
// Handlers bind and validate requests through the validation package, call
// the resource factories or services and hand the result to a response
// writer. Failures are returned to the central error handler.
package handler
