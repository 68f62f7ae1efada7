// Package predicate builds the filter that restricts a query to records
// strictly after or before a cursor position in a multi-key ordering.
package predicate

import (
	"fmt"
	"strings"

	"github.com/hookdeck/relaycursor/internal/order"
)

// Op is a comparison operator. Predicates only ever need strict inequalities
// and equality.
type Op int

const (
	Eq Op = iota
	Gt
	Lt
)

func (o Op) String() string {
	switch o {
	case Gt:
		return ">"
	case Lt:
		return "<"
	default:
		return "="
	}
}

// Side selects which half of the ordering a predicate keeps.
type Side int

const (
	After Side = iota
	Before
)

func (s Side) String() string {
	if s == Before {
		return "before"
	}
	return "after"
}

// Predicate is one of Compare, And or Or.
type Predicate interface {
	String() string
	predicate()
}

type Compare struct {
	Field order.Field
	Type  order.ValueType
	Op    Op
	Value order.Value
}

type And []Predicate

type Or []Predicate

func (Compare) predicate() {}
func (And) predicate()     {}
func (Or) predicate()      {}

func (c Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Value)
}

func (a And) String() string { return join(a, " AND ") }

func (o Or) String() string { return join(o, " OR ") }

func join(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = "(" + p.String() + ")"
	}
	return strings.Join(parts, sep)
}

// Conjoin ANDs the non-nil predicates. It returns nil when none remain.
func Conjoin(ps ...Predicate) Predicate {
	var out And
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
