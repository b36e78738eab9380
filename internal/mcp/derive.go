package mcp

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dot-do/gateway/internal/schema"
	"github.com/dot-do/gateway/internal/validate"
)

// modelVerbs is the tool set derived for every model.
var modelVerbs = []string{"create", "get", "list", "search", "update", "delete"}

// RegisterModelTools derives "{prefix}{singular}.{verb}" tools for every
// model in the schema. The derived tools are route-only: they advertise the
// model's input schema for discovery but are served by the REST surface.
func RegisterModelTools(reg *Registry, s *schema.Schema, prefix string) error {
	for _, m := range s.Models {
		modelSchema, err := json.Marshal(validate.BuildSchema(m))
		if err != nil {
			return fmt.Errorf("marshaling schema for %s: %w", m.Name, err)
		}
		for _, verb := range modelVerbs {
			reg.Register(Tool{
				Name:        prefix + m.Singular + "." + verb,
				Description: verbDescription(verb, m),
				InputSchema: verbInputSchema(verb, modelSchema),
				RouteOnly:   true,
				RoutePath:   m.Singular + "/" + verb,
			})
		}
	}
	return nil
}

func verbDescription(verb string, m *schema.Model) string {
	switch verb {
	case "create":
		return fmt.Sprintf("Create a %s (POST /%s)", m.Name, m.Plural)
	case "get":
		return fmt.Sprintf("Get a %s by id (GET /%s/:id)", m.Name, m.Plural)
	case "list":
		return fmt.Sprintf("List %s with filters and pagination (GET /%s)", m.Plural, m.Plural)
	case "search":
		return fmt.Sprintf("Search %s across text fields (GET /%s/search)", m.Plural, m.Plural)
	case "update":
		return fmt.Sprintf("Update a %s (PATCH /%s/:id)", m.Name, m.Plural)
	case "delete":
		return fmt.Sprintf("Soft-delete a %s (DELETE /%s/:id)", m.Name, m.Plural)
	}
	return verb
}

func verbInputSchema(verb string, modelSchema json.RawMessage) json.RawMessage {
	switch verb {
	case "create", "update":
		return modelSchema
	case "get", "delete":
		return json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`)
	case "list":
		return json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer"},"offset":{"type":"integer"},"sort":{"type":"string"},"filter":{"type":"object"}}}`)
	case "search":
		return json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"},"limit":{"type":"integer"},"offset":{"type":"integer"}},"required":["q"]}`)
	}
	return json.RawMessage(`{"type":"object"}`)
}

// SchemaResource exposes the parsed model schemas as a readable MCP resource.
type SchemaResource struct {
	Schema *schema.Schema
}

// Definition implements Resource.
func (sr *SchemaResource) Definition() ResourceDefinition {
	return ResourceDefinition{
		URI:         "schema://models",
		Name:        "Model Schemas",
		Description: "JSON Schemas for every model served by this gateway",
		MimeType:    "application/json",
	}
}

// Read implements Resource.
func (sr *SchemaResource) Read() (*ResourcesReadResult, error) {
	models := make(map[string]any, len(sr.Schema.Models))
	for _, m := range sr.Schema.Models {
		models[m.Name] = validate.BuildSchema(m)
	}
	text, err := json.MarshalIndent(models, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling model schemas: %w", err)
	}
	return &ResourcesReadResult{
		Contents: []ResourceContent{{
			URI:      "schema://models",
			MimeType: "application/json",
			Text:     string(text),
		}},
	}, nil
}
