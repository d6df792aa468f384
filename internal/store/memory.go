package store

import (
	"context"
	"sync"

	"github.com/deppfellow/tourbook/internal/query"
	"github.com/google/uuid"
)

// MemoryStore keeps every collection in process memory. Identifiers are
// UUIDs and unique indexes are enforced on every write.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]*memoryCollection{}}
}

func (s *MemoryStore) Driver() string { return DriverMemory }

func (s *MemoryStore) Collection(name string) Collection {
	return s.collection(name)
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{name: name}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) EnsureIndexes(_ context.Context, collection string, indexes []Index) error {
	c := s.collection(collection)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, idx := range indexes {
		if !idx.Unique {
			continue
		}
		if err := c.checkUnique(c.docs, idx); err != nil {
			return err
		}
		c.unique = append(c.unique, idx)
	}
	return nil
}

func (s *MemoryStore) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

type memoryCollection struct {
	name string

	mu     sync.RWMutex
	docs   []Document
	unique []Index
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) Find(_ context.Context, spec query.Spec) ([]Document, error) {
	if err := validateIDFilter(spec.Filter); err != nil {
		return nil, err
	}

	c.mu.RLock()
	matched := make([]Document, 0)
	for _, doc := range c.docs {
		if matches(doc, spec.Filter) {
			matched = append(matched, doc)
		}
	}
	c.mu.RUnlock()

	sortDocuments(matched, spec.Sort)

	if spec.Skip > 0 {
		if spec.Skip >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[spec.Skip:]
		}
	}
	if spec.Limit > 0 && len(matched) > spec.Limit {
		matched = matched[:spec.Limit]
	}

	out := make([]Document, len(matched))
	for i, doc := range matched {
		out[i] = project(doc, spec.Projection)
	}
	return out, nil
}

func (c *memoryCollection) FindOne(_ context.Context, filter query.Filter, projection query.Projection) (Document, error) {
	if err := validateIDFilter(filter); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, doc := range c.docs {
		if matches(doc, filter) {
			return project(doc, projection), nil
		}
	}
	return nil, nil
}

func (c *memoryCollection) FindByID(ctx context.Context, id string) (Document, error) {
	return c.FindOne(ctx, query.Eq(query.IDField, id), query.Projection{})
}

func (c *memoryCollection) Count(_ context.Context, filter query.Filter) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int64
	for _, doc := range c.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (c *memoryCollection) Create(_ context.Context, doc Document) (Document, error) {
	stored := cloneDocument(doc)
	if stored == nil {
		stored = Document{}
	}
	stored[query.IDField] = uuid.New().String()
	stored[query.VersionKey] = 0

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkUniqueAgainst(stored, ""); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, stored)

	return cloneDocument(stored), nil
}

func (c *memoryCollection) FindByIDAndUpdate(_ context.Context, id string, update Update) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &InvalidIDError{ID: id}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil, nil
	}

	next := applyUpdate(c.docs[i], update)
	version, _ := toFloat(c.docs[i][query.VersionKey])
	next[query.VersionKey] = int(version) + 1

	if err := c.checkUniqueAgainst(next, id); err != nil {
		return nil, err
	}
	c.docs[i] = next

	return cloneDocument(next), nil
}

func (c *memoryCollection) FindByIDAndDelete(_ context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &InvalidIDError{ID: id}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	removed := c.docs[i]
	c.docs = append(c.docs[:i:i], c.docs[i+1:]...)

	return removed, nil
}

func (c *memoryCollection) DeleteMany(_ context.Context, filter query.Filter) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.docs[:0:0]
	var n int64
	for _, doc := range c.docs {
		if matches(doc, filter) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return n, nil
}

func (c *memoryCollection) indexOf(id string) int {
	for i, doc := range c.docs {
		if doc.ID() == id {
			return i
		}
	}
	return -1
}

// checkUniqueAgainst verifies candidate against every other document. self
// names the document being replaced, if any. Callers hold c.mu.
func (c *memoryCollection) checkUniqueAgainst(candidate Document, self string) error {
	for _, idx := range c.unique {
		key := indexKey(candidate, idx)
		for _, doc := range c.docs {
			if doc.ID() == self {
				continue
			}
			if equalKeys(key, indexKey(doc, idx)) {
				return c.duplicate(idx, key)
			}
		}
	}
	return nil
}

func (c *memoryCollection) checkUnique(docs []Document, idx Index) error {
	for i := range docs {
		for j := i + 1; j < len(docs); j++ {
			key := indexKey(docs[i], idx)
			if equalKeys(key, indexKey(docs[j], idx)) {
				return c.duplicate(idx, key)
			}
		}
	}
	return nil
}

func (c *memoryCollection) duplicate(idx Index, key []any) error {
	fields := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		fields[i] = f.Field
	}
	return &DuplicateKeyError{
		Collection: c.name,
		Index:      idx.Name(c.name),
		Fields:     fields,
		Values:     key,
	}
}

func indexKey(doc Document, idx Index) []any {
	key := make([]any, len(idx.Fields))
	for i, f := range idx.Fields {
		key[i] = sortKey(doc, f.Field)
	}
	return key
}

func equalKeys(a, b []any) bool {
	for i := range a {
		if typeRank(a[i]) != typeRank(b[i]) || compareValues(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

// validateIDFilter rejects identifier comparisons that could never name a
// document of this store.
func validateIDFilter(filter query.Filter) error {
	for _, cmp := range filter[query.IDField] {
		if cmp.Op != query.OpEq {
			continue
		}
		id, ok := cmp.Value.(string)
		if !ok {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return &InvalidIDError{ID: id}
		}
	}
	return nil
}
