package driver

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
)

var (
	// ErrUnknownField is returned for filters or orderings naming a field the
	// source does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidFilter is returned for malformed filter conditions.
	ErrInvalidFilter = errors.New("invalid filter")

	ErrInvalidRecord = errors.New("invalid record")
)

// Direction of the physical query relative to the requested ordering.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Source is the storage layer a connection reads from.
type Source interface {
	// Fetch returns at most Limit records matching Filter and Predicate,
	// sorted by Spec. Spec is the physical ordering: already inverted for
	// backward pages.
	Fetch(context.Context, FetchRequest) ([]Record, error)
}

// Writer is implemented by sources that can be seeded.
type Writer interface {
	InsertMany(context.Context, []Record) error
}

// Store is a seedable Source that holds resources until closed.
type Store interface {
	Source
	Writer
	Close() error
}

type FetchRequest struct {
	Filter    Filter
	Spec      order.Spec
	Predicate predicate.Predicate // nil when no cursor applies
	Limit     int
	Direction Direction
}

// Record is one stored item. Fields holds the record's own columns; Meta
// holds values joined from its metadata, keyed by meta key.
type Record struct {
	ID     string
	Fields map[string]any
	Meta   map[string]any
}

// Value returns the record's value for f. Missing values are NULL.
func (r Record) Value(f order.Field) order.Value {
	switch {
	case f.Meta:
		return order.ValueOf(r.Meta[f.Name])
	case f == order.IDField:
		return order.NewValue(r.ID)
	default:
		return order.ValueOf(r.Fields[f.Name])
	}
}

type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNeq FilterOp = "neq"
	OpIn  FilterOp = "in"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
)

var filterOps = []FilterOp{OpEq, OpNeq, OpIn, OpGt, OpGte, OpLt, OpLte}

func ParseFilterOp(s string) (FilterOp, error) {
	op := FilterOp(s)
	if !slices.Contains(filterOps, op) {
		return "", fmt.Errorf("%w: operator %q", ErrInvalidFilter, s)
	}
	return op, nil
}

// Condition restricts one field. For OpIn, Value is a slice.
type Condition struct {
	Field order.Field
	Op    FilterOp
	Type  order.ValueType
	Value any
}

// Filter is a conjunction of conditions. The zero Filter matches everything.
type Filter struct {
	Conditions []Condition
}

func (f Filter) Validate() error {
	for _, c := range f.Conditions {
		if c.Field.Name == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidFilter)
		}
		if _, err := ParseFilterOp(string(c.Op)); err != nil {
			return err
		}
		if c.Op == OpIn {
			values, err := InValues(c.Value)
			if err != nil {
				return err
			}
			for _, v := range values {
				if v.Null {
					return fmt.Errorf("%w: NULL in list for %s", ErrInvalidFilter, c.Field)
				}
			}
			continue
		}
		if c.Op != OpEq && c.Op != OpNeq && order.ValueOf(c.Value).Null {
			return fmt.Errorf("%w: %s NULL for %s", ErrInvalidFilter, c.Op, c.Field)
		}
	}
	return nil
}

// InValues flattens the value of an OpIn condition.
func InValues(v any) ([]order.Value, error) {
	var out []order.Value
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			out = append(out, order.ValueOf(e))
		}
	case []string:
		for _, e := range x {
			out = append(out, order.NewValue(e))
		}
	case []order.Value:
		out = x
	default:
		return nil, fmt.Errorf("%w: in expects a list, got %T", ErrInvalidFilter, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: in expects at least one value", ErrInvalidFilter)
	}
	return out, nil
}
