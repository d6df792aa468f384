package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/deppfellow/tourbook/internal/validation"
	"github.com/rs/zerolog"
)

var validate = validation.New()

// Factory implements the standard operations for one resource type.
type Factory[T any] struct {
	desc      Descriptor[T]
	reg       *Registry
	meta      *meta
	schema    *Schema
	observers []Observer
}

// SaveOptions tunes Save and Insert.
type SaveOptions struct {
	// Modified names the fields this save changes. Ignored for inserts.
	Modified       []string
	SkipValidation bool
	SkipHooks      bool
}

// NewFactory registers desc with reg. It panics if the collection is
// already registered.
func NewFactory[T any](reg *Registry, desc Descriptor[T]) *Factory[T] {
	if desc.Plural == "" {
		desc.Plural = desc.Singular + "s"
	}
	m := &meta{
		collection: desc.Collection,
		scope:      desc.Scope,
		hidden:     desc.Hidden,
		virtuals:   desc.Virtuals,
		populate:   desc.Populate,
		indexes:    desc.Indexes,
	}
	reg.register(m)
	return &Factory[T]{desc: desc, reg: reg, meta: m, schema: SchemaOf[T]()}
}

// Subscribe adds an observer for writes through this factory.
func (f *Factory[T]) Subscribe(o Observer) { f.observers = append(f.observers, o) }

func (f *Factory[T]) Collection() store.Collection {
	return f.reg.store.Collection(f.desc.Collection)
}

func (f *Factory[T]) Schema() *Schema { return f.schema }

func (f *Factory[T]) Singular() string { return f.desc.Singular }

func (f *Factory[T]) Plural() string { return f.desc.Plural }

// GetAll lists documents matching base and the query-string features in
// params.
func (f *Factory[T]) GetAll(ctx context.Context, base query.Filter, params url.Values) (*Envelope, error) {
	docs, err := f.List(ctx, base, params)
	if err != nil {
		return nil, err
	}
	return Many(f.desc.Plural, docs), nil
}

// GetOne returns a document with its auto populations and the ones named
// in populate.
func (f *Factory[T]) GetOne(ctx context.Context, id string, populate ...string) (*Envelope, error) {
	doc, err := f.Get(ctx, id, populate...)
	if err != nil {
		return nil, err
	}
	return One(f.desc.Singular, doc), nil
}

func (f *Factory[T]) CreateOne(ctx context.Context, body json.RawMessage) (*Envelope, error) {
	doc, err := f.Create(ctx, body)
	if err != nil {
		return nil, err
	}
	return One(f.desc.Singular, doc), nil
}

func (f *Factory[T]) UpdateOne(ctx context.Context, id string, body json.RawMessage) (*Envelope, error) {
	doc, err := f.Update(ctx, id, body)
	if err != nil {
		return nil, err
	}
	return One(f.desc.Singular, doc), nil
}

func (f *Factory[T]) DeleteOne(ctx context.Context, id string) error {
	return f.Delete(ctx, id)
}

// List runs the filter, sort, field limiting and pagination stages over
// params, within scope and base.
func (f *Factory[T]) List(ctx context.Context, base query.Filter, params url.Values) ([]store.Document, error) {
	spec := query.New(f.desc.Scope.Merge(base), params, f.schema).
		Filter().
		Sort().
		LimitFields().
		Paginate().
		Spec()

	docs, err := f.Collection().Find(ctx, spec)
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "list", err)
	}
	return f.present(ctx, docs, nil)
}

// Get loads one document by id. A missing or out of scope document is a
// KindNotFound error.
func (f *Factory[T]) Get(ctx context.Context, id string, populate ...string) (store.Document, error) {
	doc, err := f.FindOneDoc(ctx, query.Eq(query.IDField, id), populate...)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, notFound(f.desc.Singular, "get")
	}
	return doc, nil
}

// FindOneDoc returns the first presented document matching filter within
// scope, or nil.
func (f *Factory[T]) FindOneDoc(ctx context.Context, filter query.Filter, populate ...string) (store.Document, error) {
	doc, err := f.Collection().FindOne(ctx, f.desc.Scope.Merge(filter), query.Projection{})
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "get", err)
	}
	if doc == nil {
		return nil, nil
	}
	docs, err := f.present(ctx, []store.Document{doc}, populate)
	if err != nil {
		return nil, err
	}
	return docs[0], nil
}

// FindOne decodes the first document matching filter within scope into T.
// Hidden fields are kept, so callers can check passwords and tokens.
func (f *Factory[T]) FindOne(ctx context.Context, filter query.Filter) (*T, error) {
	doc, err := f.Collection().FindOne(ctx, f.desc.Scope.Merge(filter), query.Projection{})
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "get", err)
	}
	if doc == nil {
		return nil, nil
	}
	return f.decode(doc)
}

// Find decodes every stored document matching filter within scope, in
// insertion order.
func (f *Factory[T]) Find(ctx context.Context, filter query.Filter) ([]T, error) {
	docs, err := f.Collection().Find(ctx, query.Spec{Filter: f.desc.Scope.Merge(filter)})
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "list", err)
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := f.decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Create decodes body into a new document, applies defaults, validates it
// and stores it.
func (f *Factory[T]) Create(ctx context.Context, body json.RawMessage) (store.Document, error) {
	v := new(T)
	if err := decodeBody(body, v); err != nil {
		return nil, validationFailed(f.desc.Singular, "create", validation.DecodeErrors(err))
	}
	return f.Insert(ctx, v, SaveOptions{})
}

// Insert stores v as a new document.
func (f *Factory[T]) Insert(ctx context.Context, v *T, opts SaveOptions) (store.Document, error) {
	if f.desc.Defaults != nil {
		f.desc.Defaults(v)
	}
	doc, err := f.prepare(ctx, v, newSaveContext(true, nil), opts, "create")
	if err != nil {
		return nil, err
	}

	created, err := f.Collection().Create(ctx, doc)
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "create", err)
	}
	f.notify(ctx, Event{Op: OpCreate, Collection: f.desc.Collection, ID: created.ID(), After: cloneDoc(created)})

	out, err := f.present(ctx, []store.Document{created}, []string{})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Update merges body into the stored document, validates the result and
// writes it back. Only the fields present in body count as modified.
func (f *Factory[T]) Update(ctx context.Context, id string, body json.RawMessage) (store.Document, error) {
	current, err := f.Collection().FindOne(ctx, f.desc.Scope.Merge(query.Eq(query.IDField, id)), query.Projection{})
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "update", err)
	}
	if current == nil {
		return nil, notFound(f.desc.Singular, "update")
	}

	v, err := f.decode(current)
	if err != nil {
		return nil, err
	}
	modified, err := bodyKeys(body)
	if err != nil {
		return nil, validationFailed(f.desc.Singular, "update", validation.DecodeErrors(err))
	}
	if err := decodeBody(body, v); err != nil {
		return nil, validationFailed(f.desc.Singular, "update", validation.DecodeErrors(err))
	}

	return f.write(ctx, id, current, v, newSaveContext(false, modified), SaveOptions{}, "update")
}

// Save writes v, an existing document loaded through FindOne, back to the
// store.
func (f *Factory[T]) Save(ctx context.Context, v *T, opts SaveOptions) (store.Document, error) {
	probe, err := f.encode(v)
	if err != nil {
		return nil, err
	}
	id := probe.ID()

	current, err := f.Collection().FindByID(ctx, id)
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "save", err)
	}
	if current == nil {
		return nil, notFound(f.desc.Singular, "save")
	}
	return f.write(ctx, id, current, v, newSaveContext(false, opts.Modified), opts, "save")
}

func (f *Factory[T]) write(ctx context.Context, id string, current store.Document, v *T, sc SaveContext, opts SaveOptions, op string) (store.Document, error) {
	doc, err := f.prepare(ctx, v, sc, opts, op)
	if err != nil {
		return nil, err
	}

	var unset []string
	for k := range current {
		if _, kept := doc[k]; !kept && f.schema.HasTopLevel(k) && k != query.IDField && k != query.VersionKey {
			unset = append(unset, k)
		}
	}
	sort.Strings(unset)

	updated, err := f.Collection().FindByIDAndUpdate(ctx, id, store.Update{Set: doc, Unset: unset})
	if err != nil {
		return nil, storeFailed(f.desc.Singular, op, err)
	}
	if updated == nil {
		return nil, notFound(f.desc.Singular, op)
	}
	f.notify(ctx, Event{Op: OpUpdate, Collection: f.desc.Collection, ID: id, Before: current, After: cloneDoc(updated)})

	out, err := f.present(ctx, []store.Document{updated}, nil)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Patch applies u to a document without validation, hooks or observers.
func (f *Factory[T]) Patch(ctx context.Context, id string, u store.Update) (store.Document, error) {
	updated, err := f.Collection().FindByIDAndUpdate(ctx, id, u)
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "patch", err)
	}
	if updated == nil {
		return nil, notFound(f.desc.Singular, "patch")
	}
	return updated, nil
}

// Delete removes a document within scope.
func (f *Factory[T]) Delete(ctx context.Context, id string) error {
	current, err := f.Collection().FindOne(ctx, f.desc.Scope.Merge(query.Eq(query.IDField, id)), query.Projection{})
	if err != nil {
		return storeFailed(f.desc.Singular, "delete", err)
	}
	if current == nil {
		return notFound(f.desc.Singular, "delete")
	}

	deleted, err := f.Collection().FindByIDAndDelete(ctx, id)
	if err != nil {
		return storeFailed(f.desc.Singular, "delete", err)
	}
	if deleted == nil {
		return notFound(f.desc.Singular, "delete")
	}
	f.notify(ctx, Event{Op: OpDelete, Collection: f.desc.Collection, ID: id, Before: deleted})
	return nil
}

// prepare normalizes, validates and runs hooks over v, then encodes it.
func (f *Factory[T]) prepare(ctx context.Context, v *T, sc SaveContext, opts SaveOptions, op string) (store.Document, error) {
	if f.desc.Normalize != nil {
		f.desc.Normalize(v)
	}
	if !opts.SkipValidation {
		if fields := f.check(ctx, v, sc); len(fields) > 0 {
			return nil, validationFailed(f.desc.Singular, op, fields)
		}
	}
	if !opts.SkipHooks {
		for _, h := range f.desc.BeforeSave {
			if err := h(ctx, v, sc); err != nil {
				return nil, err
			}
		}
	}

	doc, err := f.encode(v)
	if err != nil {
		return nil, err
	}
	delete(doc, query.IDField)
	delete(doc, query.VersionKey)
	return doc, nil
}

func (f *Factory[T]) check(ctx context.Context, v *T, sc SaveContext) []errs.FieldError {
	var fields []errs.FieldError
	if err := validate.StructCtx(ctx, v); err != nil {
		_, fields = validation.ExtractValidationError(err)
	}

	if len(f.desc.Refs) > 0 {
		doc, err := f.encode(v)
		if err == nil {
			for _, ref := range f.desc.Refs {
				for _, id := range refIDs(doc[ref]) {
					if !f.reg.store.ValidID(id) {
						fields = append(fields, errs.FieldError{Field: ref, Error: "is not a valid id"})
						break
					}
				}
			}
		}
	}

	for _, validator := range f.desc.Validators {
		fields = append(fields, validator(ctx, v, sc)...)
	}
	return fields
}

// present shapes docs and fills their populations. A nil populate list
// selects the auto populations only; an empty non-nil list selects none.
func (f *Factory[T]) present(ctx context.Context, docs []store.Document, populate []string) ([]store.Document, error) {
	for _, d := range docs {
		f.meta.shape(d)
	}
	var pops []Population
	if populate == nil || len(populate) > 0 {
		pops = f.meta.selected(populate)
	}
	if err := f.reg.populate(ctx, docs, pops, 0); err != nil {
		return nil, storeFailed(f.desc.Singular, "populate", err)
	}
	return docs, nil
}

func (f *Factory[T]) notify(ctx context.Context, ev Event) {
	for _, o := range f.observers {
		if err := o(ctx, ev); err != nil {
			zerolog.Ctx(ctx).Error().
				Err(err).
				Str("collection", ev.Collection).
				Str("op", string(ev.Op)).
				Str("id", ev.ID).
				Msg("write observer failed")
		}
	}
}

func (f *Factory[T]) encode(v *T) (store.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "encode", err)
	}
	doc := store.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, storeFailed(f.desc.Singular, "encode", err)
	}
	f.schema.normalize(doc)
	return doc, nil
}

func (f *Factory[T]) decode(doc store.Document) (*T, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, storeFailed(f.desc.Singular, "decode", err)
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, storeFailed(f.desc.Singular, "decode", err)
	}
	return v, nil
}

var errNotObject = errors.New("must be a JSON object")

func decodeBody(body json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return errNotObject
	}
	return json.Unmarshal(trimmed, v)
}

func bodyKeys(body json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, errNotObject
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func cloneDoc(d store.Document) store.Document {
	out := make(store.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
