package resource

import (
	"context"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/store"
)

// Descriptor declares how a resource of type T is stored, validated and
// presented.
type Descriptor[T any] struct {
	// Collection is the store collection, e.g. "tours".
	Collection string
	// Singular names one document in messages ("No tour found with that ID")
	// and keys single-document envelopes.
	Singular string
	// Plural keys list envelopes. Defaults to Singular + "s".
	Plural string

	Indexes []store.Index

	// Scope restricts every read, update and delete, e.g. hiding inactive
	// users. Population of this resource from elsewhere honors it too.
	Scope query.Filter

	// Hidden fields are stored but stripped from every response.
	Hidden []string

	// Virtuals adds computed fields to a document before it is returned.
	Virtuals func(doc store.Document)

	Populate []Population

	// Refs lists fields holding ids of other documents. Their values must
	// be valid ids for the active store.
	Refs []string

	// Defaults fills unset fields of a new document.
	Defaults func(v *T)
	// Normalize runs before validation on every save.
	Normalize func(v *T)

	Validators []Validator[T]
	BeforeSave []Hook[T]
}

// Population replaces ids at Path with the referenced documents.
type Population struct {
	// Path holds an id or an array of ids. For virtual populations it is
	// the name of the field to fill.
	Path       string
	Collection string
	Select     query.Projection

	// ForeignField makes this a virtual population: Path is filled with
	// every document in Collection whose ForeignField equals this
	// document's id.
	ForeignField string

	// Auto populations run on every read. The rest run only when asked
	// for by Path.
	Auto bool
}

// SaveContext tells validators and hooks what a save changes.
type SaveContext struct {
	IsNew    bool
	modified map[string]bool
}

// IsModified reports whether field is set by this save. Every field of a
// new document counts as modified.
func (sc SaveContext) IsModified(field string) bool {
	return sc.IsNew || sc.modified[field]
}

func newSaveContext(isNew bool, modified []string) SaveContext {
	sc := SaveContext{IsNew: isNew, modified: make(map[string]bool, len(modified))}
	for _, f := range modified {
		sc.modified[f] = true
	}
	return sc
}

// Validator returns field errors for v. A nil or empty result passes.
type Validator[T any] func(ctx context.Context, v *T, sc SaveContext) []errs.FieldError

// Hook runs after validation and may mutate v before it is written.
type Hook[T any] func(ctx context.Context, v *T, sc SaveContext) error

// Op is a write operation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes a completed write. Before is nil on create, After is nil
// on delete.
type Event struct {
	Op         Op
	Collection string
	ID         string
	Before     store.Document
	After      store.Document
}

// Observer is notified after every successful write to a collection.
type Observer func(ctx context.Context, ev Event) error
