package handler

import (
	"github.com/deppfellow/tourbook/internal/middleware"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/labstack/echo/v4"
)

type ReviewHandler struct {
	*Resource[model.Review]
}

func NewReviewHandler(s *server.Server, reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		Resource: NewResource(NewHandler(s), reviews.Reviews().Factory),
	}
}

// ReviewListRequest is served both at /reviews and nested under
// /tours/:tourId/reviews.
type ReviewListRequest struct {
	TourID string `param:"tourId" json:"-"`
}

func (r *ReviewListRequest) Validate() error { return nil }

type ReviewCreateRequest struct {
	RawBody
	TourID string `param:"tourId" json:"-"`
}

func (r *ReviewCreateRequest) Validate() error { return nil }

// ListReviews narrows the list to one tour when nested under it.
func (h *ReviewHandler) ListReviews(c echo.Context, req *ReviewListRequest) (*resource.Envelope, error) {
	var base query.Filter
	if req.TourID != "" {
		base = query.Eq("tour", req.TourID)
	}
	return h.GetAllWithin(c, base)
}

// CreateReview fills tour from the nested route and user from the caller
// when the body leaves them out.
func (h *ReviewHandler) CreateReview(c echo.Context, req *ReviewCreateRequest) (*resource.Envelope, error) {
	body, err := service.WithDefaults(req.Body(), map[string]string{
		"tour": req.TourID,
		"user": middleware.GetUserID(c),
	})
	if err != nil {
		return nil, err
	}
	return h.factory.CreateOne(c.Request().Context(), body)
}
