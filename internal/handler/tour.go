package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deppfellow/tourbook/internal/lib/image"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/deppfellow/tourbook/internal/validation"
	"github.com/labstack/echo/v4"
)

const maxTourImages = 3

type TourHandler struct {
	*Resource[model.Tour]
	tours  *service.TourService
	images *image.Processor
	now    func() time.Time
}

func NewTourHandler(s *server.Server, tours *service.TourService, images *image.Processor) *TourHandler {
	return &TourHandler{
		Resource: NewResource(NewHandler(s), tours.Tours().Factory, repository.PopulateReviews),
		tours:    tours,
		images:   images,
		now:      time.Now,
	}
}

// TopCheap lists the five best rated tours, cheapest first on ties.
func (h *TourHandler) TopCheap(c echo.Context, req *ListRequest) (*resource.Envelope, error) {
	return h.Resource.factory.GetAll(c.Request().Context(), nil, service.AliasTopCheap(c.QueryParams()))
}

func (h *TourHandler) Stats(c echo.Context, req *ListRequest) (*resource.Envelope, error) {
	stats, err := h.tours.Stats(c.Request().Context())
	if err != nil {
		return nil, err
	}
	return resource.One("stats", stats), nil
}

type MonthlyPlanRequest struct {
	Year int `param:"year" json:"-" validate:"required,gte=1970,lte=9999"`
}

func (r *MonthlyPlanRequest) Validate() error { return validation.Struct(r) }

func (h *TourHandler) MonthlyPlan(c echo.Context, req *MonthlyPlanRequest) (*resource.Envelope, error) {
	plan, err := h.tours.MonthlyPlan(c.Request().Context(), req.Year)
	if err != nil {
		return nil, err
	}
	return resource.One("plan", plan), nil
}

// UpdateTour applies a JSON body or a multipart form. Uploaded imageCover
// and images are resized and their file names merged into the update.
func (h *TourHandler) UpdateTour(c echo.Context, req *UpdateRequest) (*resource.Envelope, error) {
	body := req.Body()
	if isMultipart(c) {
		var err error
		if body, err = h.tourForm(c, req.ID); err != nil {
			return nil, err
		}
	}
	return h.Resource.factory.UpdateOne(c.Request().Context(), req.ID, body)
}

func (h *TourHandler) tourForm(c echo.Context, id string) (json.RawMessage, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	fields := formFields(form)
	stamp := h.now().UnixMilli()

	cover, err := fileParts(form, "imageCover", 1)
	if err != nil {
		return nil, err
	}
	if len(cover) == 1 {
		name := fmt.Sprintf("tour-%s-%d-cover.jpeg", id, stamp)
		if err := saveUpload(cover[0], name, h.images.SaveTourImage); err != nil {
			return nil, err
		}
		fields["imageCover"] = name
	}

	images, err := fileParts(form, "images", maxTourImages)
	if err != nil {
		return nil, err
	}
	if len(images) > 0 {
		names := make([]string, 0, len(images))
		for i, part := range images {
			name := fmt.Sprintf("tour-%s-%d-%d.jpeg", id, stamp, i+1)
			if err := saveUpload(part, name, h.images.SaveTourImage); err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		fields["images"] = names
	}

	return json.Marshal(fields)
}
