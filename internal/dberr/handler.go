package dberr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// Key (doc #> '{name}'::text[])=("The Forest Hiker") already exists.
	pgDetailValues = regexp.MustCompile(`\)=\((.*)\) already exists`)
	// E11000 duplicate key error collection: natours.tours index: name_1 dup key: { name: "The Forest Hiker" }
	mongoDupKey = regexp.MustCompile(`dup key: \{ (.*) \}`)
)

// HandleError converts err into an *errs.HTTPError.
//
// Errors that already are *errs.HTTPError pass through unchanged. Duplicate
// keys, malformed ids and bad field paths become 400s; anything else is a
// generic 500.
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	var dup *store.DuplicateKeyError
	if errors.As(err, &dup) {
		values := make([]string, len(dup.Values))
		for i, v := range dup.Values {
			values[i] = fmt.Sprintf("%q", fmt.Sprint(v))
		}
		return duplicateError(dup.Collection, strings.Join(values, ", "))
	}

	if mongo.IsDuplicateKeyError(err) {
		value := ""
		if m := mongoDupKey.FindStringSubmatch(err.Error()); m != nil {
			value = m[1]
		}
		return duplicateError("", value)
	}

	var invalidID *store.InvalidIDError
	if errors.As(err, &invalidID) {
		return errs.NewBadRequestError(fmt.Sprintf("Invalid _id: %s.", invalidID.ID), true, code("INVALID_ID"), nil, nil)
	}

	var invalidField *store.InvalidFieldError
	if errors.As(err, &invalidField) {
		return errs.NewBadRequestError(fmt.Sprintf("Invalid field: %s.", invalidField.Field), true, code("INVALID_FIELD"), nil, nil)
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return handlePgError(ConvertPgError(pgerr))
	}

	return errs.NewInternalServerError()
}

func handlePgError(e *Error) error {
	switch e.Code {
	case UniqueViolation:
		value := ""
		if m := pgDetailValues.FindStringSubmatch(e.Detail); m != nil {
			value = m[1]
		}
		return duplicateError(e.TableName, value)
	case InvalidTextRepresentation:
		return errs.NewBadRequestError(fmt.Sprintf("Invalid input syntax for %s.", entityName(e.TableName)), true,
			code(generateErrorCode(e.TableName, e.Code)), nil, nil)
	}
	return errs.NewInternalServerError()
}

func duplicateError(collection, value string) *errs.HTTPError {
	msg := "Duplicate field value. Please use another value!"
	if value != "" {
		msg = fmt.Sprintf("Duplicate field value: %s. Please use another value!", value)
	}
	return errs.NewBadRequestError(msg, true, code(generateErrorCode(collection, UniqueViolation)), nil, nil)
}

// generateErrorCode builds codes like TOUR_ALREADY_EXISTS.
func generateErrorCode(collection string, c Code) string {
	domain := strings.ToUpper(singular(collection))
	if domain == "" {
		domain = "RECORD"
	}

	action := "ERROR"
	switch c {
	case UniqueViolation:
		action = "ALREADY_EXISTS"
	case InvalidTextRepresentation:
		action = "INVALID"
	}
	return domain + "_" + action
}

func entityName(collection string) string {
	if collection == "" {
		return "record"
	}
	return humanizeText(singular(collection))
}

func singular(s string) string {
	if len(s) > 1 && strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}

func humanizeText(text string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

func code(s string) *string { return &s }
