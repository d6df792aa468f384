package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/store"
)

// maxPopulateDepth bounds nested population (review -> user -> ...).
const maxPopulateDepth = 3

// meta is the type-independent part of a descriptor, used when documents
// of one resource are embedded into another.
type meta struct {
	collection string
	scope      query.Filter
	hidden     []string
	virtuals   func(store.Document)
	populate   []Population
	indexes    []store.Index
}

// Registry holds every resource registered against one store.
type Registry struct {
	store store.Store

	mu    sync.RWMutex
	metas map[string]*meta
}

// NewRegistry creates an empty registry over s.
func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s, metas: map[string]*meta{}}
}

// Store returns the backing store.
func (r *Registry) Store() store.Store { return r.store }

func (r *Registry) register(m *meta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.metas[m.collection]; dup {
		panic(fmt.Sprintf("resource: collection %q registered twice", m.collection))
	}
	r.metas[m.collection] = m
}

func (r *Registry) meta(collection string) *meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metas[collection]
}

// EnsureIndexes creates the declared indexes of every registered resource.
func (r *Registry) EnsureIndexes(ctx context.Context) error {
	r.mu.RLock()
	names := make([]string, 0, len(r.metas))
	for name := range r.metas {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		m := r.meta(name)
		if len(m.indexes) == 0 {
			continue
		}
		if err := r.store.EnsureIndexes(ctx, name, m.indexes); err != nil {
			return fmt.Errorf("indexes for %s: %w", name, err)
		}
	}
	return nil
}

// shape adds virtuals and strips hidden fields.
func (m *meta) shape(doc store.Document) store.Document {
	if doc == nil {
		return nil
	}
	if m.virtuals != nil {
		m.virtuals(doc)
	}
	for _, f := range m.hidden {
		delete(doc, f)
	}
	return doc
}

// selected returns the auto populations plus the ones named in extra.
func (m *meta) selected(extra []string) []Population {
	want := map[string]bool{}
	for _, p := range extra {
		want[p] = true
	}
	var out []Population
	for _, p := range m.populate {
		if p.Auto || want[p.Path] {
			out = append(out, p)
		}
	}
	return out
}

// populate fills pops into docs in place.
func (r *Registry) populate(ctx context.Context, docs []store.Document, pops []Population, depth int) error {
	if depth >= maxPopulateDepth || len(docs) == 0 {
		return nil
	}
	for _, p := range pops {
		var err error
		if p.ForeignField != "" {
			err = r.populateVirtual(ctx, docs, p, depth)
		} else {
			err = r.populateRef(ctx, docs, p, depth)
		}
		if err != nil {
			return fmt.Errorf("populate %s: %w", p.Path, err)
		}
	}
	return nil
}

// fetch loads the documents of collection matching filter, shaped and
// populated as that resource would be on its own.
func (r *Registry) fetch(ctx context.Context, collection string, filter query.Filter, sel query.Projection, depth int) ([]store.Document, error) {
	target := r.meta(collection)
	if target == nil {
		return nil, fmt.Errorf("collection %q is not registered", collection)
	}

	docs, err := r.store.Collection(collection).Find(ctx, query.Spec{
		Filter:     target.scope.Merge(filter),
		Projection: sel,
	})
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		target.shape(d)
	}
	if err := r.populate(ctx, docs, target.selected(nil), depth+1); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *Registry) populateRef(ctx context.Context, docs []store.Document, p Population, depth int) error {
	seen := map[string]bool{}
	var ids []string
	for _, d := range docs {
		for _, id := range refIDs(d[p.Path]) {
			if !seen[id] && r.store.ValidID(id) {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := r.fetch(ctx, p.Collection, query.Filter{}.Add(query.IDField, query.OpIn, ids), p.Select, depth)
	if err != nil {
		return err
	}
	byID := make(map[string]store.Document, len(found))
	for _, f := range found {
		byID[f.ID()] = f
	}

	for _, d := range docs {
		switch v := d[p.Path].(type) {
		case string:
			if target, ok := byID[v]; ok {
				d[p.Path] = target
			} else {
				d[p.Path] = nil
			}
		case []any:
			out := make([]any, 0, len(v))
			for _, id := range refIDs(v) {
				if target, ok := byID[id]; ok {
					out = append(out, target)
				}
			}
			d[p.Path] = out
		}
	}
	return nil
}

func (r *Registry) populateVirtual(ctx context.Context, docs []store.Document, p Population, depth int) error {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if id := d.ID(); id != "" {
			ids = append(ids, id)
		}
	}

	sel := p.Select
	if len(sel.Include) > 0 {
		sel.Include = append(append([]string{}, sel.Include...), p.ForeignField)
	}
	found, err := r.fetch(ctx, p.Collection, query.Filter{}.Add(p.ForeignField, query.OpIn, ids), sel, depth)
	if err != nil {
		return err
	}

	grouped := map[string][]store.Document{}
	for _, f := range found {
		key, _ := f[p.ForeignField].(string)
		if nested, ok := f[p.ForeignField].(map[string]any); ok {
			key, _ = nested[query.IDField].(string)
		}
		grouped[key] = append(grouped[key], f)
	}
	for _, d := range docs {
		children := grouped[d.ID()]
		if children == nil {
			children = []store.Document{}
		}
		d[p.Path] = children
	}
	return nil
}

func refIDs(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return x
	}
	return nil
}
