// Package validation validates request payloads and documents.
//
// Rules live in validate struct tags. Failures are reported by JSON field
// path so clients can map them back onto what they sent.
package validation
