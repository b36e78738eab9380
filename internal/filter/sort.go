package filter

import "strings"

// SortField is one ordering term.
type SortField struct {
	Field string
	Desc  bool
}

// Sort is an ordered list of sort terms.
type Sort []SortField

// ParseSort parses a comma-separated sort expression. Each item is either
// "field" / "-field" or "field.asc" / "field.desc".
func ParseSort(s string) Sort {
	var out Sort
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		switch {
		case strings.HasSuffix(item, ".asc"):
			out = append(out, SortField{Field: strings.TrimSuffix(item, ".asc")})
		case strings.HasSuffix(item, ".desc"):
			out = append(out, SortField{Field: strings.TrimSuffix(item, ".desc"), Desc: true})
		case strings.HasPrefix(item, "-"):
			out = append(out, SortField{Field: item[1:], Desc: true})
		default:
			out = append(out, SortField{Field: item})
		}
	}
	return out
}

// Canonical prints the sort back in its canonical "field.asc,field.desc"
// form. ParseSort(s.Canonical()) always reproduces s.
func (s Sort) Canonical() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, f := range s {
		if f.Desc {
			parts[i] = f.Field + ".desc"
		} else {
			parts[i] = f.Field + ".asc"
		}
	}
	return strings.Join(parts, ",")
}
