package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/lib/image"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

var errNotAnImage = errs.NewBadRequestError("Not an image! Please upload only images.", false, nil, nil, nil)

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formFields turns the text parts of a multipart form into a JSON object.
// Values that parse as JSON keep their type, so "497" is a number and
// "[\"a\"]" an array; anything else stays a string.
func formFields(form *multipart.Form) map[string]any {
	fields := make(map[string]any, len(form.Value))
	for key, values := range form.Value {
		if len(values) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(values[0]), &v); err == nil {
			fields[key] = v
			continue
		}
		fields[key] = values[0]
	}
	return fields
}

// fileParts returns the uploads under field, rejecting more than max.
func fileParts(form *multipart.Form, field string, max int) ([]*multipart.FileHeader, error) {
	parts := form.File[field]
	if len(parts) > max {
		return nil, errs.NewBadRequestError(fmt.Sprintf("Too many files for %s, at most %d allowed", field, max), false, nil, nil, nil)
	}
	return parts, nil
}

// saveUpload checks that part claims an image type and hands it to save.
func saveUpload(part *multipart.FileHeader, name string, save func(r io.Reader, name string) error) error {
	if !strings.HasPrefix(part.Header.Get(echo.HeaderContentType), "image/") {
		return errNotAnImage
	}

	f, err := part.Open()
	if err != nil {
		return errors.Wrapf(err, "open upload %s", part.Filename)
	}
	defer f.Close()

	if err := save(f, name); err != nil {
		if errors.Is(err, image.ErrNotImage) {
			return errNotAnImage
		}
		return err
	}
	return nil
}
