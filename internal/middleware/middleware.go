// Package middleware holds the global and route-level Echo middleware:
// request ids, request-scoped logging, tracing, authentication, rate
// limiting and the central error handler.
package middleware
