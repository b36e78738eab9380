package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Matches reports whether a document satisfies the filter. A nil node matches
// everything. Unknown operators return an error, never a silent pass.
func Matches(doc map[string]any, node Node) (bool, error) {
	if node == nil {
		return true, nil
	}
	switch n := node.(type) {
	case Leaf:
		return matchLeaf(doc, n)
	case And:
		for _, c := range n {
			ok, err := Matches(doc, c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, c := range n {
			ok, err := Matches(doc, c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := Matches(doc, n.Node)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case Nor:
		ok, err := Matches(doc, Or(n))
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, fmt.Errorf("%w: unknown node type %T", ErrFilter, node)
}

func matchLeaf(doc map[string]any, l Leaf) (bool, error) {
	if !validOps[l.Op] {
		return false, fmt.Errorf("%w: unknown operator %q", ErrFilter, l.Op)
	}

	val, present := doc[l.Field]

	switch l.Op {
	case OpExists:
		want, _ := l.Value.(bool)
		return present == want, nil
	case OpEq:
		return looseEq(val, l.Value), nil
	case OpNe:
		return !looseEq(val, l.Value), nil
	case OpGt, OpGte, OpLt, OpLte:
		if !present {
			return false, nil
		}
		c, comparable := compare(val, l.Value)
		if !comparable {
			return false, nil
		}
		switch l.Op {
		case OpGt:
			return c > 0, nil
		case OpGte:
			return c >= 0, nil
		case OpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case OpIn, OpNin:
		list, ok := l.Value.([]any)
		if !ok {
			return false, fmt.Errorf("%w: %s requires a list value", ErrFilter, l.Op)
		}
		member := false
		for _, item := range list {
			if looseEq(val, item) {
				member = true
				break
			}
		}
		if l.Op == OpIn {
			return member, nil
		}
		return !member, nil
	case OpRegex:
		pattern, ok := l.Value.(string)
		if !ok {
			return false, fmt.Errorf("%w: regex requires a string pattern", ErrFilter)
		}
		if !present || val == nil {
			return false, nil
		}
		// Matching is case-insensitive, mirroring the "i" option the search
		// path always sets.
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false, fmt.Errorf("%w: bad regex %q: %v", ErrFilter, pattern, err)
		}
		return re.MatchString(stringify(val)), nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrFilter, l.Op)
}

// looseEq compares with numeric and boolean coercion: 10, 10.0 and "10" are
// equal, as are true and "true".
func looseEq(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	ab, aBool := toBool(a)
	bb, bBool := toBool(b)
	if aBool && bBool {
		return ab == bb
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	return false
}

// CompareValues orders two document values the way the comparison operators
// do: numerically when both are numeric, lexicographically when both are
// strings. The second return is false for incomparable pairs. Stores use
// this for sorting.
func CompareValues(a, b any) (int, bool) {
	return compare(a, b)
}

// compare orders two values: numerically when both are numeric, otherwise
// lexicographically when both are strings. The second return is false for
// incomparable pairs.
func compare(a, b any) (int, bool) {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// toFloat widens any numeric type (and numeric-looking strings) to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		if numericValueRe.MatchString(n) {
			f, err := strconv.ParseFloat(n, 64)
			return f, err == nil
		}
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		if b == "true" {
			return true, true
		}
		if b == "false" {
			return false, true
		}
	}
	return false, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
