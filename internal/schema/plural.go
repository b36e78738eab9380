package schema

import "strings"

// Singularize returns the lowercase singular form of a model name, used as
// the id prefix (Contact -> "contact").
func Singularize(name string) string {
	return strings.ToLower(name)
}

// Pluralize returns the lowercase plural form of a model name, used as the
// bare REST collection path. The rules are purely string-based:
//
//	Category -> categories   (consonant + y)
//	Day      -> days         (vowel + y keeps s)
//	Address  -> addresses    (s, x, z, ch, sh take es)
//	Box      -> boxes
//	Branch   -> branches
//	Wish     -> wishes
//	Contact  -> contacts     (default append s)
func Pluralize(name string) string {
	s := strings.ToLower(name)
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, "y") && len(s) > 1 {
		switch s[len(s)-2] {
		case 'a', 'e', 'o', 'u':
			return s + "s"
		}
		return s[:len(s)-1] + "ies"
	}
	if strings.HasSuffix(s, "s") || strings.HasSuffix(s, "x") || strings.HasSuffix(s, "z") ||
		strings.HasSuffix(s, "ch") || strings.HasSuffix(s, "sh") {
		return s + "es"
	}
	return s + "s"
}
