package handler

import (
	"embed"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/middleware"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/deppfellow/tourbook/internal/validation"
	"github.com/labstack/echo/v4"
)

//go:embed views/*.html
var viewFS embed.FS

// View names known to the renderer.
const (
	ViewOverview = "overview"
	ViewTour     = "tour"
	ViewLogin    = "login"
	ViewAccount  = "account"
	ViewError    = middleware.ErrorView
)

var errNoSuchTour = errs.NewNotFoundError("There is no tour with that name.", false, nil)

// Renderer renders the embedded views for Echo.
type Renderer struct {
	templates *template.Template
}

var viewFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"firstName": func(name string) string {
		first, _, _ := strings.Cut(name, " ")
		return first
	},
	"monthYear": func(v any) string {
		if t, ok := v.(time.Time); ok {
			return t.Format("January 2006")
		}
		return ""
	},
}

func NewRenderer() (*Renderer, error) {
	t, err := template.New("views").Funcs(viewFuncs).ParseFS(viewFS, "views/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Page is the data every view receives.
type Page struct {
	Title   string
	User    *model.User
	Tours   []store.Document
	Tour    store.Document
	Message string
}

type ViewHandler struct {
	Handler
	tours *repository.TourRepository
}

func NewViewHandler(s *server.Server, tours *service.TourService) *ViewHandler {
	return &ViewHandler{Handler: NewHandler(s), tours: tours.Tours()}
}

type SlugRequest struct {
	Slug string `param:"slug" json:"-" validate:"required"`
}

func (r *SlugRequest) Validate() error { return validation.Struct(r) }

func (h *ViewHandler) Overview(c echo.Context, req *ListRequest) (*Page, error) {
	tours, err := h.tours.List(c.Request().Context(), nil, nil)
	if err != nil {
		return nil, err
	}
	return &Page{Title: "All Tours", User: middleware.GetUser(c), Tours: tours}, nil
}

func (h *ViewHandler) Tour(c echo.Context, req *SlugRequest) (*Page, error) {
	tour, err := h.tours.BySlug(c.Request().Context(), req.Slug)
	if err != nil {
		return nil, err
	}
	if tour == nil {
		return nil, errNoSuchTour
	}
	name, _ := tour["name"].(string)
	return &Page{Title: name + " Tour", User: middleware.GetUser(c), Tour: tour}, nil
}

func (h *ViewHandler) Login(c echo.Context, req *ListRequest) (*Page, error) {
	return &Page{Title: "Log into your account", User: middleware.GetUser(c)}, nil
}

func (h *ViewHandler) Account(c echo.Context, req *ListRequest) (*Page, error) {
	return &Page{Title: "Your account", User: middleware.GetUser(c)}, nil
}
