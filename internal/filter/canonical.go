package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonicalise prints a parsed filter back to its canonical query-string
// form: "field.op=value" terms joined with "&", fields sorted alphabetically,
// list values re-joined with commas. A gte/lte pair on one field renders as
// ".between=a,b". ParseQuery(Canonicalise(f)) reproduces an equal AST.
//
// Only conjunctions of leaves (the shape ParseQuery produces) can be printed;
// logical trees from the Mongo surface form are rejected.
func Canonicalise(node Node) (string, error) {
	leaves, err := flatten(node)
	if err != nil {
		return "", err
	}

	// Pair gte/lte on the same field into between terms.
	type bound struct {
		gte, lte *Leaf
	}
	bounds := map[string]*bound{}
	var rest []Leaf
	for i := range leaves {
		l := leaves[i]
		if l.Op == OpGte || l.Op == OpLte {
			b := bounds[l.Field]
			if b == nil {
				b = &bound{}
				bounds[l.Field] = b
			}
			if l.Op == OpGte && b.gte == nil {
				b.gte = &leaves[i]
				continue
			}
			if l.Op == OpLte && b.lte == nil {
				b.lte = &leaves[i]
				continue
			}
		}
		rest = append(rest, l)
	}

	var terms []string
	for field, b := range bounds {
		switch {
		case b.gte != nil && b.lte != nil:
			terms = append(terms, fmt.Sprintf("%s.between=%s,%s", field, formatValue(b.gte.Value), formatValue(b.lte.Value)))
		case b.gte != nil:
			rest = append(rest, *b.gte)
		case b.lte != nil:
			rest = append(rest, *b.lte)
		}
	}
	for _, l := range rest {
		term, err := formatLeaf(l)
		if err != nil {
			return "", err
		}
		terms = append(terms, term)
	}

	sort.Strings(terms)
	return strings.Join(terms, "&"), nil
}

// flatten collects the leaves of a conjunction, recursing through nested And
// nodes.
func flatten(node Node) ([]Leaf, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case Leaf:
		return []Leaf{n}, nil
	case And:
		var out []Leaf
		for _, c := range n {
			sub, err := flatten(c)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: cannot canonicalise %T node", ErrFilter, node)
}

func formatLeaf(l Leaf) (string, error) {
	if !validOps[l.Op] {
		return "", fmt.Errorf("%w: unknown operator %q", ErrFilter, l.Op)
	}
	if l.Op == OpIn || l.Op == OpNin {
		list, ok := l.Value.([]any)
		if !ok {
			return "", fmt.Errorf("%w: %s requires a list value", ErrFilter, l.Op)
		}
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = formatValue(v)
		}
		return fmt.Sprintf("%s.%s=%s", l.Field, l.Op, strings.Join(parts, ",")), nil
	}
	return fmt.Sprintf("%s.%s=%s", l.Field, l.Op, formatValue(l.Value)), nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
