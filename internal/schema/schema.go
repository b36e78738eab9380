// Package schema parses the declarative model DSL into a validated model
// graph. A schema is authored as a mapping of model name to field name to a
// terse type expression, e.g.
//
//	Customer:
//	  name:  string!
//	  email: email!
//	  tier:  Free | Pro | Enterprise = "Free"
//	  posts: <- Post.author[]
//
// The parsed graph is immutable after Parse and safe for concurrent use.
package schema

import (
	"errors"
	"fmt"
	"regexp"
)

// FieldType is the normalised type of a parsed field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeJSON      FieldType = "json"
	TypeText      FieldType = "text"
	TypeTimestamp FieldType = "timestamp"
	TypeDate      FieldType = "date"
	TypeCUID      FieldType = "cuid"
	TypeUUID      FieldType = "uuid"
	TypeRelation  FieldType = "relation"
	TypeVector    FieldType = "vector"
)

// RelationKind distinguishes forward relations (which store the target id)
// from inverse relations (derived from the forward side on the target model).
type RelationKind string

const (
	RelationForward RelationKind = "forward"
	RelationInverse RelationKind = "inverse"
)

// Relation describes the relation attributes of a relation-typed field.
type Relation struct {
	Kind         RelationKind
	Target       string
	Many         bool
	InverseField string
}

// Field is a single parsed column.
type Field struct {
	Name       string
	Type       FieldType
	Required   bool
	Unique     bool
	Indexed    bool
	HasDefault bool
	Default    any
	Enum       []string
	Format     string
	Precision  int
	Scale      int
	Array      bool
	Dimensions int
	Relation   *Relation
}

// Model is a parsed entity model.
type Model struct {
	Name       string
	Singular   string
	Plural     string
	PrimaryKey string
	Fields     []*Field
	IDStrategy string
	NameField  string

	byName map[string]*Field
}

// Field returns the field with the given name, if declared.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// StringFields returns the names of all string-like fields (string and text),
// in declaration order. Used by full-text-ish search to build an OR filter.
func (m *Model) StringFields() []string {
	var out []string
	for _, f := range m.Fields {
		if f.Type == TypeString || f.Type == TypeText {
			out = append(out, f.Name)
		}
	}
	return out
}

// Schema is an ordered collection of parsed models.
type Schema struct {
	Models []*Model

	byName     map[string]*Model
	byPlural   map[string]*Model
	bySingular map[string]*Model
}

// Model returns the model with the given declared name.
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// ModelByPlural returns the model whose bare plural collection name matches.
func (s *Schema) ModelByPlural(plural string) (*Model, bool) {
	m, ok := s.byPlural[plural]
	return m, ok
}

// ModelBySingular returns the model whose singular (id prefix) matches.
func (s *Schema) ModelBySingular(singular string) (*Model, bool) {
	m, ok := s.bySingular[singular]
	return m, ok
}

// Definition is the raw, ordered schema as authored. Order matters: implicit
// type numbers and primary-key detection follow declaration order.
type Definition struct {
	Models []ModelDef
}

// ModelDef is one model's raw field mapping, in declaration order.
type ModelDef struct {
	Name   string
	Fields []FieldDef
}

// FieldDef is a single raw field: a name and its type expression.
type FieldDef struct {
	Name string
	Expr string
}

// Sentinel parse errors. Both are fatal at startup.
var (
	// ErrInvalidIdentifier is returned for model or field names that do not
	// match ^[A-Za-z][A-Za-z0-9_]*$. This is the sole defence against
	// injection when model names reach a SQL-writing store.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrUnresolvedRelation is returned when a relation targets a model that
	// is not declared in the schema.
	ErrUnresolvedRelation = errors.New("unresolved relation")
)

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is a legal model or field identifier.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// resolve verifies every relation target after all models are parsed.
// Cycles (including self-references) are legal; resolution is by name only.
func (s *Schema) resolve() error {
	for _, m := range s.Models {
		for _, f := range m.Fields {
			if f.Relation == nil {
				continue
			}
			if _, ok := s.byName[f.Relation.Target]; !ok {
				return fmt.Errorf("%w: %s.%s -> %s", ErrUnresolvedRelation, m.Name, f.Name, f.Relation.Target)
			}
		}
	}
	return nil
}
