package resource

import (
	"errors"
	"fmt"

	"github.com/deppfellow/tourbook/internal/errs"
)

// Kind classifies a resource error.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindStore:
		return "store"
	}
	return "unknown"
}

// Error is returned by Factory operations.
type Error struct {
	Kind     Kind
	Resource string
	Op       string
	Err      error
	Fields   []errs.FieldError
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s %s: no %s found with that ID", e.Resource, e.Op, e.Resource)
	case KindValidation:
		return fmt.Sprintf("%s %s: validation failed (%d fields)", e.Resource, e.Op, len(e.Fields))
	}
	return fmt.Sprintf("%s %s: %v", e.Resource, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the client-facing text for not found and validation errors.
func (e *Error) Message() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("No %s found with that ID", e.Resource)
	case KindValidation:
		return "Invalid input data"
	}
	return "Something went wrong"
}

func notFound(resource, op string) *Error {
	return &Error{Kind: KindNotFound, Resource: resource, Op: op}
}

func validationFailed(resource, op string, fields []errs.FieldError) *Error {
	return &Error{Kind: KindValidation, Resource: resource, Op: op, Fields: fields}
}

func storeFailed(resource, op string, err error) error {
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	var he *errs.HTTPError
	if errors.As(err, &he) {
		return err
	}
	return &Error{Kind: KindStore, Resource: resource, Op: op, Err: err}
}

// IsNotFound reports whether err is a not found resource error.
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindNotFound
}
