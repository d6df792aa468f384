package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/deppfellow/tourbook/internal/dberr"
	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// GlobalMiddlewares holds the middleware installed on every route and the
// central error handler.
type GlobalMiddlewares struct {
	server *server.Server
}

func NewGlobalMiddlewares(s *server.Server) *GlobalMiddlewares {
	return &GlobalMiddlewares{server: s}
}

func (global *GlobalMiddlewares) CORS() echo.MiddlewareFunc {
	origins := global.server.Config.Server.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
	})
}

// RequestLogger writes one "API" line per request. The level follows the
// status the error handler will send.
func (global *GlobalMiddlewares) RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,
		LogHost:    true,
		LogMethod:  true,
		LogURIPath: true,

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			statusCode := v.Status
			if v.Error != nil {
				statusCode = toHTTPError(v.Error, c).Status
			}

			logger := GetLogger(c)

			var e *zerolog.Event
			switch {
			case statusCode >= 500:
				e = logger.Error().Err(v.Error)
			case statusCode >= 400:
				e = logger.Warn()
			default:
				e = logger.Info()
			}

			if userID := GetUserID(c); userID != "" {
				e = e.Str("user_id", userID)
			}

			e.
				Dur("latency", v.Latency).
				Int("status", statusCode).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("host", v.Host).
				Str("ip", c.RealIP()).
				Str("user_agent", c.Request().UserAgent()).
				Msg("API")

			return nil
		},
	})
}

func (global *GlobalMiddlewares) Recover() echo.MiddlewareFunc {
	return middleware.Recover()
}

func (global *GlobalMiddlewares) Secure() echo.MiddlewareFunc {
	return middleware.Secure()
}

// BodyLimit caps request bodies at server.body_limit. Multipart uploads
// are exempt; their size is bounded by the image handlers.
func (global *GlobalMiddlewares) BodyLimit() echo.MiddlewareFunc {
	return middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: global.server.Config.Server.BodyLimit,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
		},
	})
}

// ErrorView is the template rendered for failed page requests.
const ErrorView = "error"

// GlobalErrorHandler turns every returned error into an errs.Response, or
// into the error page for requests outside /api when views are enabled.
func (global *GlobalMiddlewares) GlobalErrorHandler(err error, c echo.Context) {
	httpErr := toHTTPError(err, c)

	logger := GetLogger(c)
	var e *zerolog.Event
	if httpErr.Status >= http.StatusInternalServerError {
		e = logger.Error().Stack()
	} else {
		e = logger.Warn()
	}
	e.Err(err).
		Int("status", httpErr.Status).
		Str("error_code", httpErr.Code).
		Msg(httpErr.Message)

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(httpErr.Status)
		return
	}
	if c.Echo().Renderer != nil && !strings.HasPrefix(c.Request().URL.Path, "/api") {
		if err := c.Render(httpErr.Status, ErrorView, map[string]any{
			"Title":   "Something went wrong!",
			"Message": httpErr.Message,
			"User":    GetUser(c),
		}); err != nil {
			logger.Error().Err(err).Msg("failed to render error page")
		}
		return
	}
	_ = c.JSON(httpErr.Status, errs.ResponseFor(httpErr))
}

// toHTTPError classifies err. Internal errors keep a generic message.
func toHTTPError(err error, c echo.Context) *errs.HTTPError {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var resErr *resource.Error
	if errors.As(err, &resErr) {
		switch resErr.Kind {
		case resource.KindNotFound:
			return errs.NewNotFoundError(resErr.Message(), false, nil)
		case resource.KindValidation:
			code := "VALIDATION_FAILED"
			return errs.NewBadRequestError(resErr.Message(), true, &code, resErr.Fields, nil)
		}
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		if echoErr.Code == http.StatusNotFound {
			return errs.NewNotFoundError(fmt.Sprintf("Can't find %s on this server!", c.Request().URL.Path), false, nil)
		}
		message := http.StatusText(echoErr.Code)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		}
		return &errs.HTTPError{
			Code:    errs.MakeUpperCaseWithUnderscores(http.StatusText(echoErr.Code)),
			Message: message,
			Status:  echoErr.Code,
		}
	}

	var converted *errs.HTTPError
	if errors.As(dberr.HandleError(err), &converted) {
		return converted
	}
	return errs.NewInternalServerError()
}
