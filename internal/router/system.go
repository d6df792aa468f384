package router

import (
	"github.com/deppfellow/tourbook/internal/handler"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes registers the endpoints outside the business API:
// health, docs and static assets including uploaded images.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers, s *server.Server) {
	r.GET("/status", h.Health.CheckHealth)

	r.Static("/static", "static")
	r.Static("/img", s.Config.Media.Dir)

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
