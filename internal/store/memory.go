package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dot-do/gateway/internal/filter"
	"github.com/dot-do/gateway/internal/registry"
)

// IDFunc generates a new internal id for a collection. Overriding it swaps
// the id scheme (cuid by default, sqid when configured).
type IDFunc func(collection string) string

// Memory is an in-memory Store that honours the full Store contract,
// delegating all matching to the filter engine. Safe for concurrent use.
type Memory struct {
	// IDFunc, when set, generates ids for documents created without one.
	IDFunc IDFunc

	mu          sync.RWMutex
	collections map[string]*collection
	now         func() time.Time
}

type collection struct {
	docs  map[string]Document
	order []string // insertion order for stable unsorted listings
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*collection),
		now:         time.Now,
	}
}

func (m *Memory) coll(typ string) *collection {
	c, ok := m.collections[typ]
	if !ok {
		c = &collection{docs: make(map[string]Document)}
		m.collections[typ] = c
	}
	return c
}

func (m *Memory) timestamp() string {
	return m.now().UTC().Format(time.RFC3339Nano)
}

// Find returns documents matching the filter, excluding soft-deleted rows,
// with an exact total for the filter.
func (m *Memory) Find(ctx context.Context, typ string, f filter.Node, opts FindOptions) (*FindResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Document
	c, ok := m.collections[typ]
	if ok {
		for _, id := range c.order {
			doc, live := c.docs[id]
			if !live || doc[MetaDeletedAt] != nil {
				continue
			}
			match, err := filter.Matches(doc, f)
			if err != nil {
				return nil, err
			}
			if match {
				matched = append(matched, doc)
			}
		}
	}

	sortDocs(matched, opts.Sort)

	total := len(matched)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}

	items := make([]Document, 0, end-offset)
	for _, doc := range matched[offset:end] {
		items = append(items, copyDoc(doc))
	}

	return &FindResult{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

// Get returns a live document by internal id, or nil when missing or
// soft-deleted.
func (m *Memory) Get(ctx context.Context, typ, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[typ]
	if !ok {
		return nil, nil
	}
	doc, ok := c.docs[id]
	if !ok || doc[MetaDeletedAt] != nil {
		return nil, nil
	}
	return copyDoc(doc), nil
}

// Create inserts a document, assigning _id, _version=1 and both timestamps.
// A client-supplied logical id becomes the internal id; creating twice with
// the same id overwrites.
func (m *Memory) Create(ctx context.Context, typ string, data Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := copyDoc(data)
	id, _ := doc[MetaID].(string)
	if id == "" {
		if logical, ok := doc["id"].(string); ok && logical != "" {
			id = logical
		} else if m.IDFunc != nil {
			id = m.IDFunc(typ)
		} else {
			id = registry.NewCUID()
		}
	}
	ts := m.timestamp()
	doc[MetaID] = id
	doc[MetaVersion] = float64(1)
	doc[MetaCreatedAt] = ts
	doc[MetaUpdatedAt] = ts
	delete(doc, MetaDeletedAt)
	delete(doc, MetaDeletedBy)

	c := m.coll(typ)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
	return copyDoc(doc), nil
}

// Update applies the patch's $set document, bumping _version and
// _updatedAt. Returns nil for missing or soft-deleted documents.
func (m *Memory) Update(ctx context.Context, typ, id string, patch Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[typ]
	if !ok {
		return nil, nil
	}
	doc, ok := c.docs[id]
	if !ok || doc[MetaDeletedAt] != nil {
		return nil, nil
	}

	set, _ := patch["$set"].(map[string]any)
	for k, v := range set {
		doc[k] = v
	}
	version, _ := doc[MetaVersion].(float64)
	doc[MetaVersion] = version + 1
	doc[MetaUpdatedAt] = m.timestamp()
	c.docs[id] = doc
	return copyDoc(doc), nil
}

// Delete soft-deletes by setting _deletedAt. Reads exclude the row from then
// on. Returns the number of documents deleted (0 or 1).
func (m *Memory) Delete(ctx context.Context, typ, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[typ]
	if !ok {
		return 0, nil
	}
	doc, ok := c.docs[id]
	if !ok || doc[MetaDeletedAt] != nil {
		return 0, nil
	}
	doc[MetaDeletedAt] = m.timestamp()
	c.docs[id] = doc
	return 1, nil
}

// Count returns the exact number of live documents matching the filter.
func (m *Memory) Count(ctx context.Context, typ string, f filter.Node) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[typ]
	if !ok {
		return 0, nil
	}
	count := 0
	for _, doc := range c.docs {
		if doc[MetaDeletedAt] != nil {
			continue
		}
		match, err := filter.Matches(doc, f)
		if err != nil {
			return 0, err
		}
		if match {
			count++
		}
	}
	return count, nil
}

func sortDocs(docs []Document, s filter.Sort) {
	if len(s) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, term := range s {
			c, ok := filter.CompareValues(docs[i][term.Field], docs[j][term.Field])
			if !ok || c == 0 {
				continue
			}
			if term.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func copyDoc(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// MemoryFactory hands out one Memory store per tenant, creating them lazily.
type MemoryFactory struct {
	// IDFunc is copied onto every tenant store it creates.
	IDFunc IDFunc

	mu     sync.Mutex
	stores map[string]*Memory
}

// NewMemoryFactory creates an empty per-tenant factory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{stores: make(map[string]*Memory)}
}

// For returns the tenant's store, creating it on first use. The empty tenant
// is the root scope.
func (f *MemoryFactory) For(tenant string) Store {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.stores[tenant]
	if !ok {
		s = NewMemory()
		s.IDFunc = f.IDFunc
		f.stores[tenant] = s
	}
	return s
}
