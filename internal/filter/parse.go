package filter

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Query is the result of parsing a request's query parameters.
type Query struct {
	Filter  Node // And of leaves; nil when no filter params were present
	Sort    Sort
	Fields  []string
	Exclude []string
}

// reservedParams are handled by the router (pagination, projection, sorting)
// and never become filter leaves.
var reservedParams = map[string]bool{
	"page": true, "limit": true, "offset": true, "after": true, "before": true,
	"cursor": true, "array": true, "raw": true, "debug": true, "domains": true,
	"count": true, "distinct": true, "stream": true, "format": true, "depth": true,
	"include": true, "fields": true, "exclude": true, "sort": true, "q": true,
	"$sort": true,
}

// trailingOps apply when the key ends with the symbol and the value followed
// an "=": "amount>=100" reaches us as key "amount>" with value "100", so the
// consumed "=" makes the operator ">=".
var trailingOps = map[byte]Op{
	'!': OpNe,
	'>': OpGte,
	'<': OpLte,
	'~': OpRegex,
}

// embeddedOps apply when the whole expression lived in the key (no "="), as
// in "?amount>10000". Two-character symbols are tried first.
var embeddedOps = []struct {
	sym string
	op  Op
}{
	{"!=", OpNe},
	{">=", OpGte},
	{"<=", OpLte},
	{">", OpGt},
	{"<", OpLt},
	{"~", OpRegex},
}

// dot-suffix operator names accepted after the final "." of a key.
var suffixOps = map[string]string{
	"eq": "eq", "ne": "ne", "not": "ne", "gt": "gt", "gte": "gte",
	"lt": "lt", "lte": "lte", "in": "in", "nin": "nin",
	"contains": "contains", "starts": "starts", "ends": "ends",
	"exists": "exists", "between": "between", "regex": "regex",
}

var bracketRe = regexp.MustCompile(`^(.+)\[\$?(\w+)\]$`)

// ParseQuery parses URL query parameters into a Query. Keys are processed in
// sorted order so the resulting AST is deterministic and round-trips through
// Canonicalise.
func ParseQuery(values url.Values) (*Query, error) {
	q := &Query{}
	var leaves []Node

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, raw := range values[key] {
			if reservedParams[key] {
				switch key {
				case "fields":
					q.Fields = append(q.Fields, splitCSV(raw)...)
				case "exclude":
					q.Exclude = append(q.Exclude, splitCSV(raw)...)
				case "sort", "$sort":
					q.Sort = append(q.Sort, ParseSort(raw)...)
				}
				continue
			}
			ls, err := parseParam(key, raw)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, ls...)
		}
	}

	if len(leaves) > 0 {
		q.Filter = And(leaves)
	}
	return q, nil
}

// parseParam turns one (key, value) pair into filter leaves. Most pairs yield
// one leaf; "between" yields a gte/lte pair on the same field.
func parseParam(key, raw string) ([]Node, error) {
	// Bracket form: price[$gt]=25 or price[gt]=25.
	if m := bracketRe.FindStringSubmatch(key); m != nil {
		if name, ok := suffixOps[m[2]]; ok {
			return applyOp(m[1], name, raw)
		}
		return nil, fmt.Errorf("%w: unknown operator %q in %q", ErrFilter, m[2], key)
	}

	// Symbolic form with a value: amount>=100, status!=closed.
	if raw != "" && len(key) > 1 {
		if op, ok := trailingOps[key[len(key)-1]]; ok {
			return applyOp(key[:len(key)-1], string(op), raw)
		}
	}

	// Symbolic form embedded in the key: ?amount>10000 (no "=").
	if raw == "" {
		for _, s := range embeddedOps {
			i := strings.Index(key, s.sym)
			if i <= 0 || i+len(s.sym) >= len(key) {
				continue
			}
			return applyOp(key[:i], string(s.op), key[i+len(s.sym):])
		}
	}

	// Dot-suffix form: amount.gt=10000.
	if i := strings.LastIndex(key, "."); i > 0 {
		if name, ok := suffixOps[key[i+1:]]; ok {
			return applyOp(key[:i], name, raw)
		}
	}

	// Bare key: comma-separated values become membership, otherwise equality.
	if strings.Contains(raw, ",") {
		return applyOp(key, "in", raw)
	}
	return applyOp(key, "eq", raw)
}

// applyOp builds leaves for a field, operator name, and raw value, applying
// the operator-specific value transform.
func applyOp(field, opName, raw string) ([]Node, error) {
	switch opName {
	case "eq", "ne", "gt", "gte", "lt", "lte":
		return []Node{Leaf{Field: field, Op: Op(opName), Value: Coerce(raw)}}, nil
	case "in", "nin":
		return []Node{Leaf{Field: field, Op: Op(opName), Value: coerceList(raw)}}, nil
	case "contains":
		return []Node{Leaf{Field: field, Op: OpRegex, Value: raw}}, nil
	case "starts":
		return []Node{Leaf{Field: field, Op: OpRegex, Value: "^" + raw}}, nil
	case "ends":
		return []Node{Leaf{Field: field, Op: OpRegex, Value: regexp.QuoteMeta(raw) + "$"}}, nil
	case "regex":
		return []Node{Leaf{Field: field, Op: OpRegex, Value: raw}}, nil
	case "exists":
		return []Node{Leaf{Field: field, Op: OpExists, Value: raw == "true" || raw == "1"}}, nil
	case "between":
		parts := strings.SplitN(raw, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: between requires two comma-separated values, got %q", ErrFilter, raw)
		}
		return []Node{
			Leaf{Field: field, Op: OpGte, Value: Coerce(strings.TrimSpace(parts[0]))},
			Leaf{Field: field, Op: OpLte, Value: Coerce(strings.TrimSpace(parts[1]))},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrFilter, opName)
}

var numericValueRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Coerce converts a raw query value to its typed form: booleans, null,
// numbers, otherwise the string itself.
func Coerce(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if numericValueRe.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return f
		}
	}
	return s
}

// coerceList splits a comma-separated value and coerces each element. The
// list is numeric only when every element coerces to a number; otherwise all
// elements stay strings.
func coerceList(raw string) []any {
	parts := strings.Split(raw, ",")
	allNumeric := true
	for _, p := range parts {
		if !numericValueRe.MatchString(strings.TrimSpace(p)) {
			allNumeric = false
			break
		}
	}
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if allNumeric {
			out = append(out, Coerce(p))
		} else {
			out = append(out, p)
		}
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
