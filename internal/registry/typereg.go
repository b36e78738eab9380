// Package registry assigns stable numeric ids to model types and provides
// the prefixed-id codec used for opaque entity ids. Both structures are
// immutable after construction and safe for concurrent use.
package registry

import (
	"fmt"

	"github.com/dot-do/gateway/internal/schema"
)

// TypeRegistry maps model names to small positive integers and back. Entries
// are dual-indexed so decoded type numbers resolve to model names, the same
// way edge ids resolve through a node index.
type TypeRegistry struct {
	forward map[string]int
	reverse map[int]string
}

// NewTypeRegistry builds a registry for the given schema. Explicit mappings
// are respected; models without one are assigned max(existing)+1 in schema
// declaration order, so the numbering is stable across restarts for a given
// schema and explicit map.
func NewTypeRegistry(s *schema.Schema, explicit map[string]int) (*TypeRegistry, error) {
	r := &TypeRegistry{
		forward: make(map[string]int, len(s.Models)),
		reverse: make(map[int]string, len(s.Models)),
	}

	max := 0
	for name, num := range explicit {
		if num <= 0 {
			return nil, fmt.Errorf("type number for %s must be positive, got %d", name, num)
		}
		if prev, taken := r.reverse[num]; taken {
			return nil, fmt.Errorf("type number %d assigned to both %s and %s", num, prev, name)
		}
		r.forward[name] = num
		r.reverse[num] = name
		if num > max {
			max = num
		}
	}

	for _, m := range s.Models {
		if _, ok := r.forward[m.Name]; ok {
			continue
		}
		max++
		r.forward[m.Name] = max
		r.reverse[max] = m.Name
	}
	return r, nil
}

// Number returns the type number for a model name.
func (r *TypeRegistry) Number(model string) (int, bool) {
	n, ok := r.forward[model]
	return n, ok
}

// ModelName returns the model name for a type number.
func (r *TypeRegistry) ModelName(num int) (string, bool) {
	name, ok := r.reverse[num]
	return name, ok
}

// Len returns the number of registered types.
func (r *TypeRegistry) Len() int {
	return len(r.forward)
}
