// Package validate converts parsed models into JSON Schema and checks
// create/update payloads against them. Schemas are compiled once per model
// and are safe for concurrent use.
package validate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dot-do/gateway/internal/schema"
)

// FieldError is a single validation failure. Every failing field is
// reported, never just the first.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator compiles and caches per-model JSON Schemas.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*gojsonschema.Schema // keyed by model name + mode
}

// New creates an empty validator cache.
func New() *Validator {
	return &Validator{compiled: make(map[string]*gojsonschema.Schema)}
}

// BuildSchema renders a model as a JSON-Schema-style document. Inverse
// relations are omitted (they are derived, read-only), the primary key is
// never required (the system assigns it when absent), and fields with
// defaults are optional.
func BuildSchema(m *schema.Model) map[string]any {
	props := make(map[string]any, len(m.Fields))
	var required []string

	for _, f := range m.Fields {
		if f.Relation != nil && f.Relation.Kind == schema.RelationInverse {
			continue
		}
		props[f.Name] = fieldSchema(f)
		if f.Required && !f.HasDefault && f.Name != m.PrimaryKey {
			required = append(required, f.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func fieldSchema(f *schema.Field) map[string]any {
	s := make(map[string]any, 4)

	switch f.Type {
	case schema.TypeString, schema.TypeText, schema.TypeCUID, schema.TypeUUID:
		s["type"] = "string"
	case schema.TypeNumber:
		s["type"] = "number"
	case schema.TypeBoolean:
		s["type"] = "boolean"
	case schema.TypeJSON:
		s["type"] = "object"
	case schema.TypeTimestamp, schema.TypeDate:
		s["type"] = "string"
		s["format"] = "date-time"
	case schema.TypeVector:
		s["type"] = "array"
		s["items"] = map[string]any{"type": "number"}
	case schema.TypeRelation:
		if f.Relation != nil && f.Relation.Many {
			s["type"] = "array"
			s["items"] = map[string]any{"type": "string"}
		} else {
			s["type"] = "string"
		}
	default:
		s["type"] = "string"
	}

	if f.Array && f.Type != schema.TypeVector && f.Type != schema.TypeRelation {
		s = map[string]any{"type": "array", "items": s}
	}
	if len(f.Enum) > 0 {
		s["enum"] = f.Enum
	}
	if f.Format != "" {
		s["format"] = f.Format
	}
	if f.HasDefault {
		s["default"] = f.Default
	}
	return s
}

// Validate checks a payload against a model. When partial is true (PATCH
// semantics) the required list is dropped but type violations still fail.
// Meta-prefixed keys are ignored; the storage layer strips them anyway.
func (v *Validator) Validate(m *schema.Model, payload map[string]any, partial bool) ([]FieldError, error) {
	compiled, err := v.schemaFor(m, partial)
	if err != nil {
		return nil, err
	}

	clean := make(map[string]any, len(payload))
	for k, val := range payload {
		if strings.HasPrefix(k, "$") || strings.HasPrefix(k, "_") {
			continue
		}
		clean[k] = val
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(clean))
	if err != nil {
		return nil, fmt.Errorf("validating payload: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]FieldError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if field == "(root)" {
			if prop, ok := re.Details()["property"].(string); ok {
				field = prop
			}
		}
		errs = append(errs, FieldError{Field: field, Message: re.Description()})
	}
	return errs, nil
}

func (v *Validator) schemaFor(m *schema.Model, partial bool) (*gojsonschema.Schema, error) {
	key := m.Name
	if partial {
		key += "#partial"
	}

	v.mu.RLock()
	compiled, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	doc := BuildSchema(m)
	if partial {
		delete(doc, "required")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema for %s: %w", m.Name, err)
	}
	compiled, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compiling schema for %s: %w", m.Name, err)
	}

	v.mu.Lock()
	v.compiled[key] = compiled
	v.mu.Unlock()
	return compiled, nil
}
