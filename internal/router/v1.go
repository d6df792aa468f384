package router

import (
	"net/http"

	"github.com/deppfellow/tourbook/internal/handler"
	"github.com/deppfellow/tourbook/internal/middleware"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/labstack/echo/v4"
)

func registerV1Routes(v1 *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	registerTourRoutes(v1.Group("/tours"), h, m)
	registerUserRoutes(v1.Group("/users"), h, m)
	registerReviewRoutes(v1.Group("/reviews"), h, m)
}

func registerTourRoutes(g *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	t := h.Tours
	staff := m.Auth.RestrictTo(model.RoleAdmin, model.RoleLeadGuide)

	registerReviewRoutes(g.Group("/:tourId/reviews"), h, m)

	g.GET("/top-5-cheap", handler.Handle(t.Handler, t.TopCheap, http.StatusOK, &handler.ListRequest{}))
	g.GET("/tour-stats", handler.Handle(t.Handler, t.Stats, http.StatusOK, &handler.ListRequest{}))
	g.GET("/monthly-plan/:year", handler.Handle(t.Handler, t.MonthlyPlan, http.StatusOK, &handler.MonthlyPlanRequest{}),
		m.Auth.RequireAuth, m.Auth.RestrictTo(model.RoleAdmin, model.RoleLeadGuide, model.RoleGuide))

	g.GET("", handler.Handle(t.Handler, t.GetAll, http.StatusOK, &handler.ListRequest{}))
	g.POST("", handler.Handle(t.Handler, t.CreateOne, http.StatusCreated, &handler.CreateRequest{}), m.Auth.RequireAuth, staff)

	g.GET("/:id", handler.Handle(t.Handler, t.GetOne, http.StatusOK, &handler.IDRequest{}))
	g.PATCH("/:id", handler.Handle(t.Handler, t.UpdateTour, http.StatusOK, &handler.UpdateRequest{}), m.Auth.RequireAuth, staff)
	g.DELETE("/:id", handler.HandleNoContent(t.Handler, t.DeleteOne, http.StatusNoContent, &handler.IDRequest{}), m.Auth.RequireAuth, staff)
}

func registerUserRoutes(g *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	a, u := h.Auth, h.Users

	g.POST("/signup", handler.Handle(a.Handler, a.Signup, http.StatusCreated, &handler.SignupRequest{}))
	g.POST("/login", handler.Handle(a.Handler, a.Login, http.StatusOK, &handler.LoginRequest{}))
	g.GET("/logout", handler.Handle(a.Handler, a.Logout, http.StatusOK, &handler.ListRequest{}))
	g.POST("/forgotPassword", handler.Handle(a.Handler, a.ForgotPassword, http.StatusOK, &handler.ForgotPasswordRequest{}))
	g.PATCH("/resetPassword/:token", handler.Handle(a.Handler, a.ResetPassword, http.StatusOK, &handler.ResetPasswordRequest{}))

	protect := m.Auth.RequireAuth
	g.PATCH("/updateMyPassword", handler.Handle(a.Handler, a.UpdatePassword, http.StatusOK, &handler.UpdatePasswordRequest{}), protect)
	g.GET("/me", handler.Handle(u.Handler, u.GetMe, http.StatusOK, &handler.ListRequest{}), protect)
	g.PATCH("/updateMe", handler.Handle(u.Handler, u.UpdateMe, http.StatusOK, &handler.UpdateMeRequest{}), protect)
	g.DELETE("/deleteMe", handler.HandleNoContent(u.Handler, u.DeleteMe, http.StatusNoContent, &handler.ListRequest{}), protect)

	admin := m.Auth.RestrictTo(model.RoleAdmin)
	g.GET("", handler.Handle(u.Handler, u.GetAll, http.StatusOK, &handler.ListRequest{}), protect, admin)
	g.POST("", handler.Handle(u.Handler, u.CreateUser, http.StatusCreated, &handler.CreateRequest{}), protect, admin)
	g.GET("/:id", handler.Handle(u.Handler, u.GetOne, http.StatusOK, &handler.IDRequest{}), protect, admin)
	g.PATCH("/:id", handler.Handle(u.Handler, u.UpdateOne, http.StatusOK, &handler.UpdateRequest{}), protect, admin)
	g.DELETE("/:id", handler.HandleNoContent(u.Handler, u.DeleteOne, http.StatusNoContent, &handler.IDRequest{}), protect, admin)
}

// registerReviewRoutes serves /reviews and, with :tourId in the path,
// /tours/:tourId/reviews.
func registerReviewRoutes(g *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	r := h.Reviews
	protect := m.Auth.RequireAuth
	owners := m.Auth.RestrictTo(model.RoleUser, model.RoleAdmin)

	g.GET("", handler.Handle(r.Handler, r.ListReviews, http.StatusOK, &handler.ReviewListRequest{}), protect)
	g.POST("", handler.Handle(r.Handler, r.CreateReview, http.StatusCreated, &handler.ReviewCreateRequest{}), protect, m.Auth.RestrictTo(model.RoleUser))

	g.GET("/:id", handler.Handle(r.Handler, r.GetOne, http.StatusOK, &handler.IDRequest{}), protect)
	g.PATCH("/:id", handler.Handle(r.Handler, r.UpdateOne, http.StatusOK, &handler.UpdateRequest{}), protect, owners)
	g.DELETE("/:id", handler.HandleNoContent(r.Handler, r.DeleteOne, http.StatusNoContent, &handler.IDRequest{}), protect, owners)
}
