// Package router builds the Echo instance: global middleware, the
// versioned API, the rendered views and the system routes.
package router

import (
	"github.com/deppfellow/tourbook/internal/handler"
	"github.com/deppfellow/tourbook/internal/middleware"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/labstack/echo/v4"
)

func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) (*echo.Echo, error) {
	middlewares := middleware.NewMiddlewares(s, services.Auth)

	renderer, err := handler.NewRenderer()
	if err != nil {
		return nil, err
	}

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.Renderer = renderer
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Recover(),
		middlewares.Global.BodyLimit(),
	)

	registerSystemRoutes(router, h, s)
	registerViewRoutes(router, h, middlewares)

	api := router.Group("/api", middlewares.RateLimit.Limit())
	registerV1Routes(api.Group("/v1"), h, middlewares)

	return router, nil
}
