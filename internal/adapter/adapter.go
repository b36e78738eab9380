// Package adapter translates model-level operations into Store calls. It is
// the only layer that touches meta fields: system fields on input are
// discarded, server-owned values are stamped, and entities are re-prefixed
// for the wire on the way out.
package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/dot-do/gateway/internal/filter"
	"github.com/dot-do/gateway/internal/schema"
	"github.com/dot-do/gateway/internal/store"
)

// ErrNotFound reports a miss after the user-id fallback has been tried.
var ErrNotFound = errors.New("entity not found")

// RequestContext carries the per-request identity the adapter stamps into
// documents. Zero values mean anonymous.
type RequestContext struct {
	Tenant    string
	UserID    string
	UserEmail string
	UserName  string
	RequestID string
	BaseURL   string
}

// Adapter wraps one tenant's Store. It holds no mutable state; the Store is
// assumed to be safely concurrent.
type Adapter struct {
	store      store.Store
	metaPrefix string
}

// New creates an adapter over a tenant-scoped Store. metaPrefix is the
// external prefix used by FormatEntity, "$" or "_".
func New(s store.Store, metaPrefix string) *Adapter {
	if metaPrefix == "" {
		metaPrefix = "$"
	}
	return &Adapter{store: s, metaPrefix: metaPrefix}
}

// Create inserts a new entity. Meta-prefixed input fields are discarded
// (the server owns them), except a user-supplied logical id which survives
// as the plain "id" field. A missing name is derived from
// subject|title|description, falling back to the model name.
func (a *Adapter) Create(ctx context.Context, rc RequestContext, m *schema.Model, payload map[string]any) (store.Document, error) {
	doc := a.stripSystemFields(payload)

	doc[store.MetaType] = m.Name
	if _, ok := doc["name"]; !ok {
		doc["name"] = deriveName(doc, m.Name)
	}
	if rc.UserID != "" {
		doc[store.MetaCreatedBy] = rc.UserID
		doc[store.MetaUpdatedBy] = rc.UserID
	}
	if rc.RequestID != "" {
		doc[store.MetaContext] = map[string]any{"requestId": rc.RequestID}
	}

	return a.store.Create(ctx, m.Plural, doc)
}

// Get reads by internal id, falling back to a find on the logical id so that
// client-supplied ids keep resolving. Returns nil on a miss.
func (a *Adapter) Get(ctx context.Context, m *schema.Model, id string) (store.Document, error) {
	doc, err := a.store.Get(ctx, m.Plural, id)
	if err != nil || doc != nil {
		return doc, err
	}
	return a.findByLogicalID(ctx, m, id)
}

// Update applies a partial update, stamping updatedBy. The fallback retries
// against the logical id; a miss after both attempts is ErrNotFound.
func (a *Adapter) Update(ctx context.Context, rc RequestContext, m *schema.Model, id string, payload map[string]any) (store.Document, error) {
	set := a.stripSystemFields(payload)
	if rc.UserID != "" {
		set[store.MetaUpdatedBy] = rc.UserID
	}
	patch := store.Document{"$set": map[string]any(set)}

	doc, err := a.store.Update(ctx, m.Plural, id, patch)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		existing, err := a.findByLogicalID(ctx, m, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		internal, _ := existing[store.MetaID].(string)
		doc, err = a.store.Update(ctx, m.Plural, internal, patch)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, ErrNotFound
		}
	}
	return doc, nil
}

// Delete soft-deletes, falling back to the logical id. ErrNotFound when
// nothing was deleted either way.
func (a *Adapter) Delete(ctx context.Context, m *schema.Model, id string) error {
	n, err := a.store.Delete(ctx, m.Plural, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	existing, err := a.findByLogicalID(ctx, m, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	internal, _ := existing[store.MetaID].(string)
	n, err = a.store.Delete(ctx, m.Plural, internal)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List forwards a filtered, paginated find.
func (a *Adapter) List(ctx context.Context, m *schema.Model, f filter.Node, opts store.FindOptions) (*store.FindResult, error) {
	return a.store.Find(ctx, m.Plural, f, opts)
}

// Count forwards a filtered count.
func (a *Adapter) Count(ctx context.Context, m *schema.Model, f filter.Node) (int, error) {
	return a.store.Count(ctx, m.Plural, f)
}

// Search ORs a case-insensitive regex over every string-ish field of the
// model, intersected with the caller's filter.
func (a *Adapter) Search(ctx context.Context, m *schema.Model, query string, where filter.Node, opts store.FindOptions) (*store.FindResult, error) {
	fields := m.StringFields()
	leaves := make([]filter.Node, 0, len(fields))
	for _, f := range fields {
		leaves = append(leaves, filter.Leaf{Field: f, Op: filter.OpRegex, Value: query})
	}

	var node filter.Node
	switch len(leaves) {
	case 0:
		node = where
	case 1:
		node = leaves[0]
	default:
		node = filter.Or(leaves)
	}
	if where != nil && len(leaves) > 0 {
		node = filter.And{node, where}
	}

	return a.store.Find(ctx, m.Plural, node, opts)
}

// FormatEntity converts an internal document to its external form in one
// pass: underscore meta fields come out under the configured prefix, user
// fields pass through untouched.
func (a *Adapter) FormatEntity(doc store.Document) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if strings.HasPrefix(k, "_") {
			out[a.metaPrefix+k[1:]] = v
			continue
		}
		out[k] = v
	}
	return out
}

// FormatEntities maps FormatEntity over a result page.
func (a *Adapter) FormatEntities(docs []store.Document) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = a.FormatEntity(d)
	}
	return out
}

func (a *Adapter) findByLogicalID(ctx context.Context, m *schema.Model, id string) (store.Document, error) {
	res, err := a.store.Find(ctx, m.Plural,
		filter.Leaf{Field: "id", Op: filter.OpEq, Value: id},
		store.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	return res.Items[0], nil
}

// stripSystemFields drops every meta-prefixed input key. A user-supplied
// "$id"/"_id" survives as the logical id; everything else meta-prefixed is
// server-owned and silently discarded.
func (a *Adapter) stripSystemFields(payload map[string]any) store.Document {
	doc := make(store.Document, len(payload))
	for k, v := range payload {
		if strings.HasPrefix(k, "$") || strings.HasPrefix(k, "_") {
			if k[1:] == "id" {
				if _, ok := payload["id"]; !ok {
					doc["id"] = v
				}
			}
			continue
		}
		doc[k] = v
	}
	return doc
}

func deriveName(doc store.Document, modelName string) string {
	for _, k := range []string{"subject", "title", "description"} {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return modelName
}
