package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/lib/image"
	"github.com/deppfellow/tourbook/internal/middleware"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/labstack/echo/v4"
)

var errUseSignup = errs.NewBadRequestError("This route is not defined! Please use /signup instead", false, nil, nil, nil)

type UserHandler struct {
	*Resource[model.User]
	auth   *service.AuthService
	images *image.Processor
	now    func() time.Time
}

func NewUserHandler(s *server.Server, services *service.Services, images *image.Processor) *UserHandler {
	return &UserHandler{
		Resource: NewResource(NewHandler(s), services.Repos.Users.Factory),
		auth:     services.Auth,
		images:   images,
		now:      time.Now,
	}
}

// CreateUser points admins at signup; accounts are only created there.
func (h *UserHandler) CreateUser(c echo.Context, req *CreateRequest) (*resource.Envelope, error) {
	return nil, errUseSignup
}

func (h *UserHandler) GetMe(c echo.Context, req *ListRequest) (*resource.Envelope, error) {
	return h.factory.GetOne(c.Request().Context(), middleware.GetUserID(c))
}

type UpdateMeRequest struct {
	RawBody
}

func (r *UpdateMeRequest) Validate() error { return nil }

// UpdateMe changes the caller's name and email. A multipart photo is
// resized and stored as the new profile picture.
func (h *UserHandler) UpdateMe(c echo.Context, req *UpdateMeRequest) (*resource.Envelope, error) {
	userID := middleware.GetUserID(c)
	body := req.Body()
	photo := ""

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		if body, err = json.Marshal(formFields(form)); err != nil {
			return nil, err
		}

		parts, err := fileParts(form, "photo", 1)
		if err != nil {
			return nil, err
		}
		if len(parts) == 1 {
			photo = fmt.Sprintf("user-%s-%d.jpeg", userID, h.now().UnixMilli())
			if err := saveUpload(parts[0], photo, h.images.SaveUserPhoto); err != nil {
				return nil, err
			}
		}
	}

	doc, err := h.auth.UpdateMe(c.Request().Context(), userID, body, photo)
	if err != nil {
		return nil, err
	}
	return resource.One("user", doc), nil
}

func (h *UserHandler) DeleteMe(c echo.Context, req *ListRequest) error {
	return h.auth.DeleteMe(c.Request().Context(), middleware.GetUserID(c))
}
