// Package store defines the persistence contract the gateway depends on and
// an in-memory implementation of it. The gateway core treats the Store as an
// external collaborator: every Store call is the only I/O-suspending
// operation in a request, and tenant isolation is achieved by handing each
// tenant its own Store instance.
package store

import (
	"context"

	"github.com/dot-do/gateway/internal/filter"
)

// Document is the internal entity shape: user fields at the top level plus
// underscore-prefixed meta fields owned by the store.
type Document = map[string]any

// Internal meta field names. The REST surface re-prefixes these with the
// configured meta prefix on the way out.
const (
	MetaID        = "_id"
	MetaType      = "_type"
	MetaVersion   = "_version"
	MetaCreatedAt = "_createdAt"
	MetaUpdatedAt = "_updatedAt"
	MetaCreatedBy = "_createdBy"
	MetaUpdatedBy = "_updatedBy"
	MetaDeletedAt = "_deletedAt"
	MetaDeletedBy = "_deletedBy"
	MetaContext   = "_context"
)

// FindOptions carries pagination and ordering for Find.
type FindOptions struct {
	Limit  int
	Offset int
	Sort   filter.Sort
}

// FindResult is a page of matching documents. Total is the exact count for
// the filter and HasMore is (offset + len(items)) < total.
type FindResult struct {
	Items   []Document
	Total   int
	HasMore bool
}

// Store is the persistence collaborator. All type arguments are bare plural
// collection names, never tenant-prefixed; tenant scoping happens by
// instantiating one Store per tenant.
//
// Implementations must: assign _id, _version=1, _createdAt and _updatedAt on
// create; bump _version and _updatedAt on update; return nil (not an error)
// for missing documents on Get and Update; delete softly by setting
// _deletedAt; and exclude soft-deleted documents from every read path.
//
// Field existence semantics: a field is absent when its key is missing from
// the document map; an explicit null value counts as present. $exists
// filters follow this rule.
type Store interface {
	Find(ctx context.Context, typ string, f filter.Node, opts FindOptions) (*FindResult, error)
	Get(ctx context.Context, typ, id string) (Document, error)
	Create(ctx context.Context, typ string, data Document) (Document, error)
	Update(ctx context.Context, typ, id string, patch Document) (Document, error)
	Delete(ctx context.Context, typ, id string) (int, error)
	Count(ctx context.Context, typ string, f filter.Node) (int, error)
}

// Factory hands out per-tenant Store instances. The empty tenant selects the
// root scope.
type Factory interface {
	For(tenant string) Store
}
