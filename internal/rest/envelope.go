package rest

import (
	"net/http"

	"github.com/goccy/go-json"
)

// APIInfo identifies the API in every envelope.
type APIInfo struct {
	Name        string
	Version     string
	Description string
}

func (info APIInfo) object() map[string]any {
	obj := map[string]any{"name": info.Name}
	if info.Version != "" {
		obj["version"] = info.Version
	}
	if info.Description != "" {
		obj["description"] = info.Description
	}
	return obj
}

// envelope assembles the stable top-level response shape. payloadKey is
// "data" unless the endpoint chooses a semantic key.
type envelope struct {
	info       APIInfo
	payloadKey string
	payload    any
	hasPayload bool
	meta       map[string]any
	links      map[string]string
	actions    map[string]any
	user       *User
	apiErr     *APIError
}

func (e *envelope) object() map[string]any {
	out := map[string]any{
		"api":   e.info.object(),
		"links": e.links,
	}
	if e.hasPayload {
		key := e.payloadKey
		if key == "" {
			key = "data"
		}
		out[key] = e.payload
	}
	if len(e.meta) > 0 {
		out["meta"] = e.meta
	}
	if len(e.actions) > 0 {
		out["actions"] = e.actions
	}
	if e.user != nil {
		out["user"] = e.user
	}
	if e.apiErr != nil {
		out["error"] = e.apiErr.errObject()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
