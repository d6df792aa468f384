// Package dberr turns storage driver errors into client errors.
//
// Each backend reports the same problems differently: a unique index
// collision is a *pgconn.PgError with SQLSTATE 23505 in Postgres, a
// mongo.WriteException with code 11000 in MongoDB and a
// *store.DuplicateKeyError in memory. HandleError folds them into one
// *errs.HTTPError per kind.
package dberr

import (
	"github.com/jackc/pgx/v5/pgconn"
)

// Code is the category of a database error.
type Code string

// The JSONB tables carry no foreign key, check or not-null constraints on
// document fields, so unique indexes and failed casts are the only client
// faults Postgres reports.
const (
	Other                     Code = "other"
	UniqueViolation           Code = "unique_violation"
	InvalidTextRepresentation Code = "invalid_text_representation"
)

var pgCodes = map[string]Code{
	"23505": UniqueViolation,
	"22P02": InvalidTextRepresentation,
}

// MapCode maps a Postgres SQLSTATE to a Code.
func MapCode(sqlstate string) Code {
	if c, ok := pgCodes[sqlstate]; ok {
		return c
	}
	return Other
}

// Severity is the Postgres message severity.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
	SeverityPanic   Severity = "PANIC"
	SeverityWarning Severity = "WARNING"
	SeverityNotice  Severity = "NOTICE"
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityLog     Severity = "LOG"
)

// MapSeverity maps the severity text of a Postgres error.
func MapSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityFatal, SeverityPanic, SeverityWarning, SeverityNotice,
		SeverityDebug, SeverityInfo, SeverityLog:
		return Severity(s)
	}
	return SeverityError
}

// Error is a normalized Postgres error.
type Error struct {
	Code           Code
	Severity       Severity
	DatabaseCode   string
	Message        string
	TableName      string
	ColumnName     string
	ConstraintName string
	Detail         string

	driverErr error
}

func (e *Error) Error() string {
	return string(e.Severity) + ": " + e.Message + " (SQLSTATE " + e.DatabaseCode + ")"
}

func (e *Error) Unwrap() error { return e.driverErr }

// ConvertPgError normalizes src.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		ConstraintName: src.ConstraintName,
		Detail:         src.Detail,
		driverErr:      src,
	}
}
