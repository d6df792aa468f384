package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/deppfellow/tourbook/internal/middleware"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/deppfellow/tourbook/internal/validation"
	"github.com/labstack/echo/v4"
)

// loggedOutTTL is how long the placeholder cookie written on logout lives.
const loggedOutTTL = 10 * time.Second

type AuthHandler struct {
	Handler
	auth *service.AuthService
	now  func() time.Time
}

func NewAuthHandler(s *server.Server, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		Handler: NewHandler(s),
		auth:    auth,
		now:     time.Now,
	}
}

type SignupRequest struct {
	service.SignupInput
}

func (r *SignupRequest) Validate() error { return nil }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error { return nil }

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *ForgotPasswordRequest) Validate() error { return validation.Struct(r) }

type ResetPasswordRequest struct {
	Token           string `param:"token" json:"-" validate:"required"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (r *ResetPasswordRequest) Validate() error { return validation.Struct(r) }

type UpdatePasswordRequest struct {
	service.UpdatePasswordInput
}

func (r *UpdatePasswordRequest) Validate() error { return nil }

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (h *AuthHandler) Signup(c echo.Context, req *SignupRequest) (*resource.Envelope, error) {
	sess, err := h.auth.Signup(c.Request().Context(), req.SignupInput, baseURL(c, h.server)+"/me")
	if err != nil {
		return nil, err
	}
	return h.sendSession(c, sess), nil
}

func (h *AuthHandler) Login(c echo.Context, req *LoginRequest) (*resource.Envelope, error) {
	sess, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return h.sendSession(c, sess), nil
}

// Logout overwrites the session cookie with a short-lived placeholder.
func (h *AuthHandler) Logout(c echo.Context, req *ListRequest) (*messageResponse, error) {
	c.SetCookie(h.cookie(c, "loggedout", h.now().Add(loggedOutTTL)))
	return &messageResponse{Status: "success"}, nil
}

func (h *AuthHandler) ForgotPassword(c echo.Context, req *ForgotPasswordRequest) (*messageResponse, error) {
	base := baseURL(c, h.server)
	err := h.auth.ForgotPassword(c.Request().Context(), req.Email, func(token string) string {
		return base + "/api/v1/users/resetPassword/" + token
	})
	if err != nil {
		return nil, err
	}
	return &messageResponse{Status: "success", Message: "Token sent to email!"}, nil
}

func (h *AuthHandler) ResetPassword(c echo.Context, req *ResetPasswordRequest) (*resource.Envelope, error) {
	sess, err := h.auth.ResetPassword(c.Request().Context(), req.Token, req.Password, req.PasswordConfirm)
	if err != nil {
		return nil, err
	}
	return h.sendSession(c, sess), nil
}

func (h *AuthHandler) UpdatePassword(c echo.Context, req *UpdatePasswordRequest) (*resource.Envelope, error) {
	sess, err := h.auth.UpdatePassword(c.Request().Context(), middleware.GetUserID(c), req.UpdatePasswordInput)
	if err != nil {
		return nil, err
	}
	return h.sendSession(c, sess), nil
}

// sendSession sets the session cookie and returns the token with the user.
func (h *AuthHandler) sendSession(c echo.Context, sess *service.Session) *resource.Envelope {
	c.SetCookie(h.cookie(c, sess.Token, h.now().Add(h.server.Config.Auth.CookieTTL)))

	env := resource.One("user", sess.User)
	env.Token = sess.Token
	return env
}

func (h *AuthHandler) cookie(c echo.Context, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.server.Config.IsProduction() || c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	}
}

// baseURL is integration.app_url, or the scheme and host of the request
// when it is not configured.
func baseURL(c echo.Context, s *server.Server) string {
	if u := s.Config.Integration.AppURL; u != "" {
		return strings.TrimRight(u, "/")
	}
	return c.Scheme() + "://" + c.Request().Host
}
