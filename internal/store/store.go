// Package store provides the document collections the resource layer reads
// and writes.
//
// Documents are plain maps of JSON-compatible values (plus time.Time for
// dates) keyed by field name, with the identifier under "_id" as a string.
// Three backends implement the same contract: MongoDB, PostgreSQL (documents
// kept as JSONB) and an in-process memory store used for local runs and
// tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deppfellow/tourbook/internal/query"
)

// Document is a stored record.
type Document map[string]any

// ID returns the document identifier, or "" when it has none.
func (d Document) ID() string {
	id, _ := d[query.IDField].(string)
	return id
}

// Update describes a single-document write. Set replaces top-level fields;
// Unset removes them. "_id" and the version key are ignored in both.
type Update struct {
	Set   Document
	Unset []string
}

// IndexField is one key of an index.
type IndexField struct {
	Field string
	Desc  bool
}

// Index describes a secondary or unique index on a collection.
type Index struct {
	Fields []IndexField
	Unique bool
}

// Name returns the conventional index name: <collection>_<fields>_key for
// unique indexes, <collection>_<fields>_idx otherwise.
func (i Index) Name(collection string) string {
	parts := make([]string, 0, len(i.Fields)+2)
	parts = append(parts, collection)
	for _, f := range i.Fields {
		parts = append(parts, strings.ReplaceAll(f.Field, ".", "_"))
	}
	if i.Unique {
		parts = append(parts, "key")
	} else {
		parts = append(parts, "idx")
	}
	return strings.Join(parts, "_")
}

// Collection is a handle on one named set of documents.
//
// Lookups that match nothing return a nil document and a nil error.
type Collection interface {
	Name() string

	// Find returns the documents matching spec.Filter, ordered by spec.Sort
	// with insertion order as the tiebreak. A zero spec.Limit returns every
	// match.
	Find(ctx context.Context, spec query.Spec) ([]Document, error)
	FindOne(ctx context.Context, filter query.Filter, projection query.Projection) (Document, error)
	FindByID(ctx context.Context, id string) (Document, error)
	Count(ctx context.Context, filter query.Filter) (int64, error)

	// Create stores doc under a newly generated identifier and returns the
	// stored document. Any "_id" in doc is ignored.
	Create(ctx context.Context, doc Document) (Document, error)
	// FindByIDAndUpdate applies update and returns the document as written.
	FindByIDAndUpdate(ctx context.Context, id string, update Update) (Document, error)
	// FindByIDAndDelete removes the document and returns it as it was.
	FindByIDAndDelete(ctx context.Context, id string) (Document, error)
	DeleteMany(ctx context.Context, filter query.Filter) (int64, error)
}

// Store owns the connection behind every collection.
type Store interface {
	Driver() string
	Collection(name string) Collection
	EnsureIndexes(ctx context.Context, collection string, indexes []Index) error
	// ValidID reports whether id has the shape of an identifier issued by
	// this store.
	ValidID(id string) bool
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	// ErrInvalidID is returned when an identifier cannot be parsed by the
	// backend.
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidField is returned for field paths the backend cannot query.
	ErrInvalidField = errors.New("invalid field")
	// ErrDuplicateKey is matched by every unique-index violation raised by
	// the memory store.
	ErrDuplicateKey = errors.New("duplicate key")
)

// InvalidIDError wraps ErrInvalidID with the offending value.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidID, e.ID)
}

func (e *InvalidIDError) Unwrap() error { return ErrInvalidID }

// InvalidFieldError wraps ErrInvalidField with the offending path.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidField, e.Field)
}

func (e *InvalidFieldError) Unwrap() error { return ErrInvalidField }

// DuplicateKeyError reports the unique index a write collided with.
type DuplicateKeyError struct {
	Collection string
	Index      string
	Fields     []string
	Values     []any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: collection %s index %s (%s)", ErrDuplicateKey, e.Collection, e.Index, strings.Join(e.Fields, ", "))
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// Driver names accepted by the configuration.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)
