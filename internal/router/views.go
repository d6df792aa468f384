package router

import (
	"github.com/deppfellow/tourbook/internal/handler"
	"github.com/deppfellow/tourbook/internal/middleware"
	"github.com/labstack/echo/v4"
)

func registerViewRoutes(r *echo.Echo, h *handler.Handlers, m *middleware.Middlewares) {
	v := h.Views

	r.GET("/", handler.HandleView(v.Handler, v.Overview, handler.ViewOverview, &handler.ListRequest{}), m.Auth.OptionalAuth)
	r.GET("/tour/:slug", handler.HandleView(v.Handler, v.Tour, handler.ViewTour, &handler.SlugRequest{}), m.Auth.OptionalAuth)
	r.GET("/login", handler.HandleView(v.Handler, v.Login, handler.ViewLogin, &handler.ListRequest{}), m.Auth.OptionalAuth)
	r.GET("/me", handler.HandleView(v.Handler, v.Account, handler.ViewAccount, &handler.ListRequest{}), m.Auth.RequireAuth)
}
