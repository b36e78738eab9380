package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Parse turns an ordered schema definition into a validated model graph.
// Model and field names are checked against the identifier rule, model-level
// metadata keys ($id, $name) are lifted out of the field set, an id primary
// key is synthesised where no cuid/uuid primary key is declared, and every
// relation target is resolved. Parse errors are fatal at startup.
func Parse(def Definition) (*Schema, error) {
	s := &Schema{
		byName:     make(map[string]*Model, len(def.Models)),
		byPlural:   make(map[string]*Model, len(def.Models)),
		bySingular: make(map[string]*Model, len(def.Models)),
	}
	for _, md := range def.Models {
		m, err := parseModel(md)
		if err != nil {
			return nil, err
		}
		s.Models = append(s.Models, m)
		s.byName[m.Name] = m
		s.byPlural[m.Plural] = m
		s.bySingular[m.Singular] = m
	}
	if err := s.resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseMap is a convenience for callers holding an unordered mapping. Models
// and fields are sorted by name so the result is deterministic.
func ParseMap(models map[string]map[string]string) (*Schema, error) {
	def := Definition{}
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		md := ModelDef{Name: name}
		fields := models[name]
		fnames := make([]string, 0, len(fields))
		for fn := range fields {
			fnames = append(fnames, fn)
		}
		sort.Strings(fnames)
		for _, fn := range fnames {
			md.Fields = append(md.Fields, FieldDef{Name: fn, Expr: fields[fn]})
		}
		def.Models = append(def.Models, md)
	}
	return Parse(def)
}

func parseModel(md ModelDef) (*Model, error) {
	if !ValidIdentifier(md.Name) {
		return nil, fmt.Errorf("%w: model %q", ErrInvalidIdentifier, md.Name)
	}
	m := &Model{
		Name:       md.Name,
		Singular:   Singularize(md.Name),
		Plural:     Pluralize(md.Name),
		PrimaryKey: "id",
		byName:     make(map[string]*Field, len(md.Fields)),
	}

	for _, fd := range md.Fields {
		// Keys starting with $ are model-level metadata, never fields.
		if strings.HasPrefix(fd.Name, "$") {
			switch fd.Name {
			case "$id":
				m.IDStrategy = strings.TrimSpace(fd.Expr)
			case "$name":
				m.NameField = strings.TrimSpace(fd.Expr)
			}
			continue
		}
		if !ValidIdentifier(fd.Name) {
			return nil, fmt.Errorf("%w: field %s.%q", ErrInvalidIdentifier, md.Name, fd.Name)
		}
		f, err := ParseField(fd.Name, fd.Expr)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", md.Name, fd.Name, err)
		}
		m.Fields = append(m.Fields, f)
		m.byName[f.Name] = f
	}

	// Primary key detection: the first cuid/uuid field declared both required
	// and unique wins; otherwise an id field is synthesised.
	for _, f := range m.Fields {
		if (f.Type == TypeCUID || f.Type == TypeUUID) && f.Required && f.Unique {
			m.PrimaryKey = f.Name
			break
		}
	}
	if _, ok := m.byName["id"]; !ok && m.PrimaryKey == "id" {
		id := &Field{Name: "id", Type: TypeCUID, Required: true, Unique: true, Indexed: true}
		m.Fields = append([]*Field{id}, m.Fields...)
		m.byName["id"] = id
	}

	return m, nil
}

var (
	decimalRe = regexp.MustCompile(`^(?i)decimal\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)
	vectorRe  = regexp.MustCompile(`^(?i)vector\[\s*(\d+)\s*\]$`)
	enumFnRe  = regexp.MustCompile(`^(?i)enum\((.*)\)$`)
	numberRe  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// ParseField parses a single type expression into a Field. The grammar is
// whitespace-tolerant and the base type token is case-insensitive:
//
//	core modifiers [ "=" literal ]
//
// where core is a base type, "type[]", "enum(a,b)", "A | B | C",
// "decimal(p,s)", "vector[n]", or a relation arrow ("-> Model.field[]").
func ParseField(name, expr string) (*Field, error) {
	f := &Field{Name: name}

	core, def, hasDefault := splitDefault(strings.TrimSpace(expr))
	core = stripModifiers(core, f)
	core = strings.TrimSpace(core)

	switch {
	case strings.HasPrefix(core, "->"), strings.HasPrefix(core, "<-"):
		if err := parseRelation(core, f); err != nil {
			return nil, err
		}
	case vectorRe.MatchString(core):
		dims, err := strconv.Atoi(vectorRe.FindStringSubmatch(core)[1])
		if err != nil || dims <= 0 {
			return nil, fmt.Errorf("vector dimensions must be a positive integer: %q", core)
		}
		f.Type = TypeVector
		f.Dimensions = dims
	case decimalRe.MatchString(core):
		parts := decimalRe.FindStringSubmatch(core)
		f.Type = TypeNumber
		f.Precision, _ = strconv.Atoi(parts[1])
		f.Scale, _ = strconv.Atoi(parts[2])
	case enumFnRe.MatchString(core):
		f.Type = TypeString
		f.Enum = splitTrim(enumFnRe.FindStringSubmatch(core)[1], ",")
	case strings.Contains(core, "|"):
		f.Type = TypeString
		f.Enum = splitTrim(core, "|")
	case strings.HasSuffix(core, "[]"):
		f.Array = true
		applyBaseType(strings.TrimSpace(strings.TrimSuffix(core, "[]")), f)
	default:
		applyBaseType(core, f)
	}

	if hasDefault {
		v, err := parseLiteral(def)
		if err != nil {
			return nil, err
		}
		f.HasDefault = true
		f.Default = v
		// A default value implies the field is optional on input.
		f.Required = false
	}

	// Derived index flags.
	if f.Unique || f.Type == TypeRelation || f.Type == TypeVector {
		f.Indexed = true
	}
	if f.Relation != nil && f.Relation.Kind == RelationInverse {
		// Inverse relations are derived, never required on input.
		f.Required = false
	}
	return f, nil
}

// splitDefault splits "core = literal" at the first top-level '=' (outside
// quotes, parens, and brackets).
func splitDefault(s string) (core, def string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return s, "", false
}

// stripModifiers removes trailing modifier tokens from the core expression
// and applies them to f. Recognised: ! ? ## # and the space-separated words
// #unique and #index.
func stripModifiers(core string, f *Field) string {
	for {
		core = strings.TrimRight(core, " \t")
		switch {
		case strings.HasSuffix(core, "#unique"):
			f.Unique, f.Indexed = true, true
			core = strings.TrimSuffix(core, "#unique")
		case strings.HasSuffix(core, "#index"):
			f.Indexed = true
			core = strings.TrimSuffix(core, "#index")
		case strings.HasSuffix(core, "##"):
			f.Unique, f.Indexed = true, true
			core = strings.TrimSuffix(core, "##")
		case strings.HasSuffix(core, "#"):
			f.Indexed = true
			core = strings.TrimSuffix(core, "#")
		case strings.HasSuffix(core, "!"):
			f.Required = true
			core = strings.TrimSuffix(core, "!")
		case strings.HasSuffix(core, "?"):
			f.Required = false
			core = strings.TrimSuffix(core, "?")
		default:
			return core
		}
	}
}

// parseRelation handles "-> Model[.field][[]]" and "<- Model[.field][[]]".
func parseRelation(core string, f *Field) error {
	kind := RelationForward
	rest := strings.TrimPrefix(core, "->")
	if strings.HasPrefix(core, "<-") {
		kind = RelationInverse
		rest = strings.TrimPrefix(core, "<-")
	}
	rest = strings.TrimSpace(rest)

	many := false
	if strings.HasSuffix(rest, "[]") {
		many = true
		rest = strings.TrimSpace(strings.TrimSuffix(rest, "[]"))
	}

	target, inverse := rest, ""
	if i := strings.Index(rest, "."); i >= 0 {
		target, inverse = rest[:i], rest[i+1:]
	}
	if !ValidIdentifier(target) {
		return fmt.Errorf("%w: relation target %q", ErrInvalidIdentifier, target)
	}
	if inverse != "" && !ValidIdentifier(inverse) {
		return fmt.Errorf("%w: relation field %q", ErrInvalidIdentifier, inverse)
	}

	f.Type = TypeRelation
	f.Relation = &Relation{Kind: kind, Target: target, Many: many, InverseField: inverse}
	// Forward relations store the target id and are always indexed.
	f.Indexed = true
	return nil
}

// applyBaseType maps a bare type token onto f. Unknown tokens fall back to
// string, which keeps authoring forgiving.
func applyBaseType(token string, f *Field) {
	switch strings.ToLower(token) {
	case "string":
		f.Type = TypeString
	case "number", "int", "integer", "float":
		f.Type = TypeNumber
	case "boolean", "bool":
		f.Type = TypeBoolean
	case "json", "object":
		f.Type = TypeJSON
	case "text":
		f.Type = TypeText
	case "timestamp", "datetime":
		f.Type = TypeTimestamp
	case "date":
		f.Type = TypeDate
	case "cuid", "id":
		f.Type = TypeCUID
	case "uuid":
		f.Type = TypeUUID
	case "url", "email", "markdown", "slug":
		f.Type = TypeString
		f.Format = strings.ToLower(token)
	default:
		f.Type = TypeString
	}
}

// parseLiteral parses a default-value literal: quoted string, number, true,
// false, or null.
func parseLiteral(s string) (any, error) {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1], nil
		}
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if numberRe.MatchString(s) {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric literal %q", s)
		}
		return n, nil
	}
	return nil, fmt.Errorf("invalid default literal %q", s)
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
