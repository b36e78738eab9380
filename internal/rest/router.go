// Package rest mounts the canonical REST surface for every model in the
// schema: CRUD, count, search, relation traversal, verb execution and global
// id-prefix dispatch, all wrapped in the stable response envelope.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/dot-do/gateway/internal/adapter"
	"github.com/dot-do/gateway/internal/filter"
	"github.com/dot-do/gateway/internal/schema"
	"github.com/dot-do/gateway/internal/store"
	"github.com/dot-do/gateway/internal/validate"
)

// Options configures the router.
type Options struct {
	BasePath    string
	PageSize    int
	MaxPageSize int
	MetaPrefix  string
	BaseDomain  string
	API         APIInfo
	Auth        AuthOptions

	// MCP, when set, is mounted at /mcp ahead of the model routes.
	MCP http.Handler
}

// prefixed ids look like "contact_abc": a lowercase prefix, one underscore,
// an opaque body.
var idPrefixRe = regexp.MustCompile(`^[a-z][a-z0-9_]*_`)

// Router serves the REST surface. Shared state (schema, validator) is
// immutable after construction; per-tenant stores come from the factory at
// request time.
type Router struct {
	schema  *schema.Schema
	stores  store.Factory
	valid   *validate.Validator
	opts    Options
	logger  *slog.Logger
	auth    *authenticator
	mux     *mux.Router
	handler http.Handler
}

// NewRouter builds the full route table for the parsed schema.
func NewRouter(s *schema.Schema, stores store.Factory, opts Options, logger *slog.Logger) *Router {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.MetaPrefix == "" {
		opts.MetaPrefix = "$"
	}

	rt := &Router{
		schema: s,
		stores: stores,
		valid:  validate.New(),
		opts:   opts,
		logger: logger,
		auth:   newAuthenticator(opts.Auth, logger),
		mux:    mux.NewRouter(),
	}
	rt.routes()
	rt.handler = withLogging(logger, withRequestID(http.HandlerFunc(rt.dispatch)))
	return rt
}

func (rt *Router) routes() {
	api := rt.mux
	if rt.opts.BasePath != "" {
		api = rt.mux.PathPrefix(rt.opts.BasePath).Subrouter()
	}

	api.HandleFunc("/health", rt.handleHealth).Methods(http.MethodGet)
	if rt.opts.MCP != nil {
		api.PathPrefix("/mcp").Handler(rt.opts.MCP)
	}

	api.HandleFunc("/{plural}/$count", rt.handleCount).Methods(http.MethodGet)
	api.HandleFunc("/{plural}/search", rt.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/{plural}/{id}/{relation}", rt.handleRelation).Methods(http.MethodGet)
	api.HandleFunc("/{plural}/{id}/{verb}", rt.handleVerb).Methods(http.MethodPost)
	api.HandleFunc("/{plural}/{id}", rt.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{plural}/{id}", rt.handleReplace).Methods(http.MethodPut)
	api.HandleFunc("/{plural}/{id}", rt.handlePatch).Methods(http.MethodPatch)
	api.HandleFunc("/{plural}/{id}", rt.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/{plural}", rt.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{plural}", rt.handleCreate).Methods(http.MethodPost)

	// Global id-prefix dispatch for bare-id paths.
	api.HandleFunc("/{seg}", rt.handleGlobalSingle).
		Methods(http.MethodPut, http.MethodPatch, http.MethodDelete)
	api.HandleFunc("/{seg}/{verb}", rt.handleGlobalVerb).Methods(http.MethodPost)

	api.HandleFunc("/", rt.handleHome).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// dispatch extracts the tenant, authenticates, and routes.
func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request) {
	tenant, rest := ExtractTenantFromPath(r.URL.Path)
	if tenant != "" {
		r = r.Clone(r.Context())
		r.URL.Path = rest
	} else {
		tenant = ExtractTenantFromHost(r.Host, rt.opts.BaseDomain)
	}

	ctx := context.WithValue(r.Context(), ctxKeyTenant, tenant)

	user, aerr := rt.auth.authenticate(r)
	if aerr != nil {
		rt.writeError(w, r.WithContext(ctx), aerr, "")
		return
	}
	if user != nil {
		ctx = context.WithValue(ctx, ctxKeyUser, user)
	}

	rt.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (rt *Router) adapterFor(r *http.Request) *adapter.Adapter {
	return adapter.New(rt.stores.For(TenantFrom(r.Context())), rt.opts.MetaPrefix)
}

func (rt *Router) requestContext(r *http.Request) adapter.RequestContext {
	rc := adapter.RequestContext{
		Tenant:    TenantFrom(r.Context()),
		RequestID: RequestIDFrom(r.Context()),
		BaseURL:   baseURL(r),
	}
	if u := UserFrom(r.Context()); u != nil {
		rc.UserID = u.ID
		rc.UserEmail = u.Email
		rc.UserName = u.Name
	}
	return rc
}

// model resolves the plural path segment, falling back to global id-prefix
// dispatch when the segment is a prefixed id rather than a collection.
func (rt *Router) model(w http.ResponseWriter, r *http.Request, plural string) (*schema.Model, bool) {
	m, ok := rt.schema.ModelByPlural(plural)
	if ok {
		return m, true
	}
	rt.dispatchByPrefix(w, r, plural)
	return nil, false
}

// dispatchByPrefix re-routes "/{prefixed_id}..." to "/{plural}/{prefixed_id}..."
// by rewriting the URL and running the route table again.
func (rt *Router) dispatchByPrefix(w http.ResponseWriter, r *http.Request, seg string) {
	if !idPrefixRe.MatchString(seg) {
		rt.writeError(w, r, ErrNotFound("Unknown collection "+strconv.Quote(seg)), "")
		return
	}
	prefix := seg[:strings.IndexByte(seg, '_')]
	m, ok := rt.schema.ModelBySingular(prefix)
	if !ok {
		rt.writeError(w, r, ErrNotFound("Unknown entity type prefix "+strconv.Quote(prefix+"_")), "")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, rt.opts.BasePath)
	r2 := r.Clone(r.Context())
	r2.URL.Path = rt.opts.BasePath + "/" + m.Plural + rest
	rt.mux.ServeHTTP(w, r2)
}

func (rt *Router) handleGlobalSingle(w http.ResponseWriter, r *http.Request) {
	rt.dispatchByPrefix(w, r, mux.Vars(r)["seg"])
}

func (rt *Router) handleGlobalVerb(w http.ResponseWriter, r *http.Request) {
	rt.dispatchByPrefix(w, r, mux.Vars(r)["seg"])
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleHome(w http.ResponseWriter, r *http.Request) {
	collections := make([]string, 0, len(rt.schema.Models))
	links := map[string]string{
		"self": selfURL(r),
		"home": baseURL(r) + "/",
	}
	for _, m := range rt.schema.Models {
		collections = append(collections, m.Plural)
		links[m.Plural] = collectionURL(r, rt.opts.BasePath, m.Plural)
	}
	rt.respond(w, r, http.StatusOK, envelope{
		payloadKey: "collections",
		payload:    collections,
		hasPayload: true,
		links:      links,
	})
}

func (rt *Router) handleList(w http.ResponseWriter, r *http.Request) {
	m, ok := rt.model(w, r, mux.Vars(r)["plural"])
	if !ok {
		return
	}

	q, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	limit, offset, aerr := rt.pageParams(r)
	if aerr != nil {
		rt.writeError(w, r, aerr, m.Plural)
		return
	}

	res, err := rt.adapterFor(r).List(r.Context(), m, q.Filter, store.FindOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   q.Sort,
	})
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}

	rt.respondList(w, r, m, q, res, limit, offset)
}

func (rt *Router) handleCount(w http.ResponseWriter, r *http.Request) {
	m, ok := rt.model(w, r, mux.Vars(r)["plural"])
	if !ok {
		return
	}

	q, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	n, err := rt.adapterFor(r).Count(r.Context(), m, q.Filter)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}

	rt.respond(w, r, http.StatusOK, envelope{
		payload:    map[string]any{"count": n},
		hasPayload: true,
	})
}

func (rt *Router) handleSearch(w http.ResponseWriter, r *http.Request) {
	m, ok := rt.model(w, r, mux.Vars(r)["plural"])
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		rt.writeError(w, r, ErrBadRequest("Missing required query parameter \"q\""), m.Plural)
		return
	}
	q, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	limit, offset, aerr := rt.pageParams(r)
	if aerr != nil {
		rt.writeError(w, r, aerr, m.Plural)
		return
	}

	// An optional body carries a Mongo-style filter block, intersected with
	// the query-string filter.
	body, aerr := decodeBody(r)
	if aerr != nil {
		rt.writeError(w, r, aerr, m.Plural)
		return
	}
	bodyFilter, err := filter.ParseMongo(body)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	where := q.Filter
	switch {
	case where == nil:
		where = bodyFilter
	case bodyFilter != nil:
		where = filter.And{where, bodyFilter}
	}

	res, err := rt.adapterFor(r).Search(r.Context(), m, query, where, store.FindOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   q.Sort,
	})
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}

	rt.respondList(w, r, m, q, res, limit, offset)
}

func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, ok := rt.model(w, r, vars["plural"])
	if !ok {
		return
	}

	ad := rt.adapterFor(r)
	doc, err := ad.Get(r.Context(), m, vars["id"])
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	if doc == nil {
		rt.writeError(w, r, ErrNotFound(m.Name+" not found"), m.Plural)
		return
	}

	rt.respond(w, r, http.StatusOK, envelope{
		payload:    ad.FormatEntity(doc),
		hasPayload: true,
	})
}

func (rt *Router) handleCreate(w http.ResponseWriter, r *http.Request) {
	m, ok := rt.model(w, r, mux.Vars(r)["plural"])
	if !ok {
		return
	}

	payload, aerr := decodeBody(r)
	if aerr != nil {
		rt.writeError(w, r, aerr, m.Plural)
		return
	}
	fieldErrs, err := rt.valid.Validate(m, payload, false)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	if len(fieldErrs) > 0 {
		rt.writeError(w, r, ErrValidation(fieldErrs), m.Plural)
		return
	}

	ad := rt.adapterFor(r)
	doc, err := ad.Create(r.Context(), rt.requestContext(r), m, payload)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}

	rt.respond(w, r, http.StatusCreated, envelope{
		payload:    ad.FormatEntity(doc),
		hasPayload: true,
	})
}

func (rt *Router) handleReplace(w http.ResponseWriter, r *http.Request) {
	rt.update(w, r, false)
}

func (rt *Router) handlePatch(w http.ResponseWriter, r *http.Request) {
	rt.update(w, r, true)
}

func (rt *Router) update(w http.ResponseWriter, r *http.Request, partial bool) {
	vars := mux.Vars(r)
	m, ok := rt.model(w, r, vars["plural"])
	if !ok {
		return
	}

	payload, aerr := decodeBody(r)
	if aerr != nil {
		rt.writeError(w, r, aerr, m.Plural)
		return
	}
	fieldErrs, err := rt.valid.Validate(m, payload, partial)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	if len(fieldErrs) > 0 {
		rt.writeError(w, r, ErrValidation(fieldErrs), m.Plural)
		return
	}

	ad := rt.adapterFor(r)
	doc, err := ad.Update(r.Context(), rt.requestContext(r), m, vars["id"], payload)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}

	rt.respond(w, r, http.StatusOK, envelope{
		payload:    ad.FormatEntity(doc),
		hasPayload: true,
	})
}

func (rt *Router) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, ok := rt.model(w, r, vars["plural"])
	if !ok {
		return
	}

	if err := rt.adapterFor(r).Delete(r.Context(), m, vars["id"]); err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}

	rt.respond(w, r, http.StatusOK, envelope{
		payload:    map[string]any{"deleted": true, "id": vars["id"]},
		hasPayload: true,
	})
}

// handleVerb persists {lastVerb: verb, ...body} and echoes the verb in meta.
func (rt *Router) handleVerb(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, ok := rt.model(w, r, vars["plural"])
	if !ok {
		return
	}
	verb := vars["verb"]

	payload, aerr := decodeBody(r)
	if aerr != nil {
		rt.writeError(w, r, aerr, m.Plural)
		return
	}
	fieldErrs, err := rt.valid.Validate(m, payload, true)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	if len(fieldErrs) > 0 {
		rt.writeError(w, r, ErrValidation(fieldErrs), m.Plural)
		return
	}

	merged := map[string]any{"lastVerb": verb}
	for k, v := range payload {
		merged[k] = v
	}

	ad := rt.adapterFor(r)
	doc, err := ad.Update(r.Context(), rt.requestContext(r), m, vars["id"], merged)
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}

	rt.respond(w, r, http.StatusOK, envelope{
		payload:    ad.FormatEntity(doc),
		hasPayload: true,
		meta:       map[string]any{"verb": verb},
	})
}

// handleRelation traverses a forward (to-one or to-many) or inverse relation.
func (rt *Router) handleRelation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, ok := rt.model(w, r, vars["plural"])
	if !ok {
		return
	}

	field, ok := m.Field(vars["relation"])
	if !ok || field.Relation == nil {
		rt.writeError(w, r, ErrNotFound("Unknown relation "+strconv.Quote(vars["relation"])), m.Plural)
		return
	}
	target, ok := rt.schema.Model(field.Relation.Target)
	if !ok {
		rt.writeError(w, r, ErrNotFound("Unknown relation target "+strconv.Quote(field.Relation.Target)), m.Plural)
		return
	}

	ad := rt.adapterFor(r)
	doc, err := ad.Get(r.Context(), m, vars["id"])
	if err != nil {
		rt.writeError(w, r, err, m.Plural)
		return
	}
	if doc == nil {
		rt.writeError(w, r, ErrNotFound(m.Name+" not found"), m.Plural)
		return
	}

	if field.Relation.Kind == schema.RelationInverse {
		rt.relatedInverse(w, r, ad, doc, field, target)
		return
	}
	rt.relatedForward(w, r, ad, doc, field, target)
}

func (rt *Router) relatedForward(w http.ResponseWriter, r *http.Request, ad *adapter.Adapter, doc store.Document, field *schema.Field, target *schema.Model) {
	if field.Relation.Many {
		ids, _ := doc[field.Name].([]any)
		items := make([]map[string]any, 0, len(ids))
		for _, raw := range ids {
			id, ok := raw.(string)
			if !ok {
				continue
			}
			related, err := ad.Get(r.Context(), target, id)
			if err != nil {
				rt.writeError(w, r, err, target.Plural)
				return
			}
			if related != nil {
				items = append(items, ad.FormatEntity(related))
			}
		}
		rt.respond(w, r, http.StatusOK, envelope{
			payload:    items,
			hasPayload: true,
			meta:       map[string]any{"total": len(items)},
		})
		return
	}

	id, _ := doc[field.Name].(string)
	if id == "" {
		rt.writeError(w, r, ErrNotFound(target.Name+" not found"), target.Plural)
		return
	}
	related, err := ad.Get(r.Context(), target, id)
	if err != nil {
		rt.writeError(w, r, err, target.Plural)
		return
	}
	if related == nil {
		rt.writeError(w, r, ErrNotFound(target.Name+" not found"), target.Plural)
		return
	}
	rt.respond(w, r, http.StatusOK, envelope{
		payload:    ad.FormatEntity(related),
		hasPayload: true,
	})
}

func (rt *Router) relatedInverse(w http.ResponseWriter, r *http.Request, ad *adapter.Adapter, doc store.Document, field *schema.Field, target *schema.Model) {
	limit, offset, aerr := rt.pageParams(r)
	if aerr != nil {
		rt.writeError(w, r, aerr, target.Plural)
		return
	}

	id, _ := doc[store.MetaID].(string)
	res, err := ad.List(r.Context(), target,
		filter.Leaf{Field: field.Relation.InverseField, Op: filter.OpEq, Value: id},
		store.FindOptions{Limit: limit, Offset: offset})
	if err != nil {
		rt.writeError(w, r, err, target.Plural)
		return
	}

	rt.respond(w, r, http.StatusOK, envelope{
		payload:    ad.FormatEntities(res.Items),
		hasPayload: true,
		meta:       map[string]any{"total": res.Total, "limit": limit, "offset": offset},
		links:      paginationLinks(r, res.Total, limit, offset),
	})
}

func (rt *Router) respondList(w http.ResponseWriter, r *http.Request, m *schema.Model, q *filter.Query, res *store.FindResult, limit, offset int) {
	items := rt.adapterFor(r).FormatEntities(res.Items)
	for i, item := range items {
		items[i] = applyProjection(item, q.Fields, q.Exclude, rt.opts.MetaPrefix)
	}

	meta := map[string]any{"total": res.Total, "limit": limit, "offset": offset}
	if raw := r.URL.RawQuery; raw != "" {
		meta["query"] = raw
	}

	rt.respond(w, r, http.StatusOK, envelope{
		payload:    items,
		hasPayload: true,
		meta:       meta,
		links:      paginationLinks(r, res.Total, limit, offset),
	})
}

// applyProjection keeps only the requested fields (meta fields always
// survive), then removes excluded ones.
func applyProjection(item map[string]any, fields, exclude []string, metaPrefix string) map[string]any {
	if len(fields) > 0 {
		keep := make(map[string]bool, len(fields))
		for _, f := range fields {
			keep[f] = true
		}
		projected := make(map[string]any, len(fields))
		for k, v := range item {
			if keep[k] || strings.HasPrefix(k, metaPrefix) {
				projected[k] = v
			}
		}
		item = projected
	}
	for _, f := range exclude {
		delete(item, f)
	}
	return item
}

func (rt *Router) pageParams(r *http.Request) (limit, offset int, aerr *APIError) {
	q := r.URL.Query()

	limit = rt.opts.PageSize
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, ErrBadRequest("Invalid limit " + strconv.Quote(s))
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > rt.opts.MaxPageSize {
		limit = rt.opts.MaxPageSize
	}

	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, ErrBadRequest("Invalid offset " + strconv.Quote(s))
		}
		offset = n
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

func decodeBody(r *http.Request) (map[string]any, *APIError) {
	if r.Body == nil || r.ContentLength == 0 {
		return map[string]any{}, nil
	}
	defer r.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, ErrBadRequest("Invalid JSON body: " + err.Error())
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

func (rt *Router) respond(w http.ResponseWriter, r *http.Request, status int, e envelope) {
	e.info = rt.opts.API
	if e.links == nil {
		e.links = map[string]string{
			"self": selfURL(r),
			"home": baseURL(r) + "/",
		}
	}
	if e.user == nil {
		e.user = UserFrom(r.Context())
	}
	writeJSON(w, status, e.object())
}

// writeError maps any error to the envelope's error object. Storage and
// other unexpected errors become INTERNAL_ERROR; the envelope keeps api and
// links.self so even 5xx responses are navigable.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error, collection string) {
	var ae *APIError
	switch {
	case errors.As(err, &ae):
	case errors.Is(err, adapter.ErrNotFound):
		ae = ErrNotFound(err.Error())
	case errors.Is(err, filter.ErrFilter):
		ae = ErrBadRequest(err.Error())
	default:
		rt.logger.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
		)
		ae = NewAPIError(CodeInternal, "Internal server error")
	}

	links := buildErrorLinks(ae.Code, baseURL(r)+"/", collectionURL(r, rt.opts.BasePath, collection))
	links["self"] = selfURL(r)

	rt.respond(w, r, ae.Status, envelope{apiErr: ae, links: links})
}
