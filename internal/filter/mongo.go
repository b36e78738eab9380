package filter

import (
	"fmt"
	"sort"
	"strings"
)

// ParseMongo parses a Mongo-style filter object, as accepted in search and
// list request bodies. Logical keys ($and/$or/$not/$nor) nest arbitrarily;
// field keys map either to a literal (equality) or to an operator object.
// Operator keys are accepted with or without the leading dollar sign.
func ParseMongo(m map[string]any) (Node, error) {
	if len(m) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var children []Node
	for _, key := range keys {
		v := m[key]
		switch key {
		case "$and", "$or", "$nor":
			subs, err := parseMongoList(key, v)
			if err != nil {
				return nil, err
			}
			switch key {
			case "$and":
				children = append(children, And(subs))
			case "$or":
				children = append(children, Or(subs))
			case "$nor":
				children = append(children, Nor(subs))
			}
		case "$not":
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: $not requires an object", ErrFilter)
			}
			sub, err := ParseMongo(obj)
			if err != nil {
				return nil, err
			}
			children = append(children, Not{Node: sub})
		default:
			node, err := parseMongoField(key, v)
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		}
	}

	if len(children) == 1 {
		return children[0], nil
	}
	return And(children), nil
}

func parseMongoList(key string, v any) ([]Node, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires a list", ErrFilter, key)
	}
	subs := make([]Node, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s entries must be objects", ErrFilter, key)
		}
		sub, err := ParseMongo(obj)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// parseMongoField handles a field key: either a literal for equality or an
// operator object like {"$gt": 25}.
func parseMongoField(field string, v any) (Node, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Leaf{Field: field, Op: OpEq, Value: v}, nil
	}

	opKeys := make([]string, 0, len(obj))
	for k := range obj {
		opKeys = append(opKeys, k)
	}
	sort.Strings(opKeys)

	var leaves []Node
	for _, k := range opKeys {
		name := strings.TrimPrefix(k, "$")
		if name == "options" {
			// Regex options ride alongside $regex; matching is always
			// case-insensitive so the flag carries no extra meaning here.
			continue
		}
		if name == "not" {
			name = "ne"
		}
		op := Op(name)
		if !validOps[op] {
			return nil, fmt.Errorf("%w: unknown operator %q on field %q", ErrFilter, k, field)
		}
		value := obj[k]
		if op == OpIn || op == OpNin {
			list, ok := value.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s requires a list on field %q", ErrFilter, k, field)
			}
			value = list
		}
		leaves = append(leaves, Leaf{Field: field, Op: op, Value: value})
	}

	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return And(leaves), nil
}
