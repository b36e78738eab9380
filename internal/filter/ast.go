// Package filter implements the query/filter engine: parsing operator-rich
// query strings into a canonical filter AST, parsing Mongo-style logical
// blocks from request bodies, matching documents against an AST, and printing
// an AST back to its canonical query-string form.
//
// All functions in this package are pure and total: parse and match errors
// are returned, never raised, and an empty AST matches everything.
package filter

import "errors"

// Op is a comparison operator.
type Op string

const (
	OpEq     Op = "eq"
	OpNe     Op = "ne"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
	OpIn     Op = "in"
	OpNin    Op = "nin"
	OpRegex  Op = "regex"
	OpExists Op = "exists"
)

// ErrFilter is the base error for filter parse and match failures.
var ErrFilter = errors.New("filter error")

// Node is a filter AST node: one of Leaf, And, Or, Not, Nor.
type Node interface {
	isNode()
}

// Leaf is a single field comparison.
type Leaf struct {
	Field string
	Op    Op
	Value any // literal or []any for in/nin
}

// And is a conjunction; empty matches everything.
type And []Node

// Or is a disjunction; empty matches nothing.
type Or []Node

// Not negates a single sub-tree.
type Not struct {
	Node Node
}

// Nor is the negation of the disjunction of its children.
type Nor []Node

func (Leaf) isNode() {}
func (And) isNode()  {}
func (Or) isNode()   {}
func (Not) isNode()  {}
func (Nor) isNode()  {}

// validOps enumerates every operator the matcher understands.
var validOps = map[Op]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNin: true, OpRegex: true, OpExists: true,
}
