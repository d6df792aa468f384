package handler

import (
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/validation"
	"github.com/labstack/echo/v4"
)

// ListRequest carries no bound fields; the query string is read whole by
// the feature builder.
type ListRequest struct{}

func (r *ListRequest) Validate() error { return nil }

type IDRequest struct {
	ID string `param:"id" json:"-" validate:"required"`
}

func (r *IDRequest) Validate() error { return validation.Struct(r) }

type CreateRequest struct {
	RawBody
}

func (r *CreateRequest) Validate() error { return nil }

type UpdateRequest struct {
	RawBody
	ID string `param:"id" json:"-" validate:"required"`
}

func (r *UpdateRequest) Validate() error { return validation.Struct(r) }

// Resource exposes the five factory operations of one resource as typed
// handlers.
type Resource[T any] struct {
	Handler
	factory *resource.Factory[T]
	// populate names the optional populations applied on get-one.
	populate []string
}

func NewResource[T any](h Handler, factory *resource.Factory[T], populate ...string) *Resource[T] {
	return &Resource[T]{Handler: h, factory: factory, populate: populate}
}

func (r *Resource[T]) GetAll(c echo.Context, req *ListRequest) (*resource.Envelope, error) {
	return r.factory.GetAll(c.Request().Context(), nil, c.QueryParams())
}

// GetAllWithin lists documents matching base in addition to the query
// string.
func (r *Resource[T]) GetAllWithin(c echo.Context, base query.Filter) (*resource.Envelope, error) {
	return r.factory.GetAll(c.Request().Context(), base, c.QueryParams())
}

func (r *Resource[T]) GetOne(c echo.Context, req *IDRequest) (*resource.Envelope, error) {
	return r.factory.GetOne(c.Request().Context(), req.ID, r.populate...)
}

func (r *Resource[T]) CreateOne(c echo.Context, req *CreateRequest) (*resource.Envelope, error) {
	return r.factory.CreateOne(c.Request().Context(), req.Body())
}

func (r *Resource[T]) UpdateOne(c echo.Context, req *UpdateRequest) (*resource.Envelope, error) {
	return r.factory.UpdateOne(c.Request().Context(), req.ID, req.Body())
}

func (r *Resource[T]) DeleteOne(c echo.Context, req *IDRequest) error {
	return r.factory.DeleteOne(c.Request().Context(), req.ID)
}
