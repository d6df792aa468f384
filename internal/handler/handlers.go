package handler

import (
	"github.com/deppfellow/tourbook/internal/lib/image"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
)

// Handlers groups every HTTP handler so the router receives one value.
type Handlers struct {
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
	Auth    *AuthHandler
	Tours   *TourHandler
	Reviews *ReviewHandler
	Users   *UserHandler
	Views   *ViewHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	images := image.NewProcessor(s.Config.Media.Dir)

	return &Handlers{
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s),
		Auth:    NewAuthHandler(s, services.Auth),
		Tours:   NewTourHandler(s, services.Tours, images),
		Reviews: NewReviewHandler(s, services.Reviews),
		Users:   NewUserHandler(s, services, images),
		Views:   NewViewHandler(s, services.Tours),
	}
}
