package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/labstack/echo/v4"
)

// TokenCookie carries the session token for browser clients.
const TokenCookie = "jwt"

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type AuthMiddleware struct {
	server *server.Server
	auth   Authenticator
}

func NewAuthMiddleware(s *server.Server, auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{server: s, auth: auth}
}

// RequireAuth rejects requests without a valid token from the
// Authorization header or the jwt cookie.
func (a *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := a.auth.Authenticate(c.Request().Context(), tokenFrom(c))
		if err != nil {
			GetLogger(c).Warn().Err(err).Str("function", "RequireAuth").Msg("authentication failed")
			return err
		}

		setUser(c, user)
		return next(c)
	}
}

// OptionalAuth attaches the user of a valid jwt cookie and otherwise lets
// the request through anonymously. Used by the rendered views.
func (a *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(TokenCookie)
		if err != nil || cookie.Value == "" {
			return next(c)
		}
		if user, err := a.auth.Authenticate(c.Request().Context(), cookie.Value); err == nil {
			setUser(c, user)
		}
		return next(c)
	}
}

// RestrictTo allows only users holding one of roles. It must run after
// RequireAuth.
func (a *AuthMiddleware) RestrictTo(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetUser(c)
			if user == nil || !slices.Contains(roles, user.Role) {
				return errs.NewForbiddenError("You do not have permission to perform this action", false)
			}
			return next(c)
		}
	}
}

func tokenFrom(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func setUser(c echo.Context, user *model.User) {
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
	c.Set(UserRoleKey, user.Role)

	l := GetLogger(c).With().
		Str("user_id", user.ID).
		Str("user_role", user.Role).
		Logger()
	storeLogger(c, &l)
}
