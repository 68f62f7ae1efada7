package predicate

import (
	"errors"
	"fmt"

	"github.com/hookdeck/relaycursor/internal/order"
)

var ErrPositionMismatch = errors.New("cursor values do not match ordering")

// Threshold supplies the cursor value of a key out of band, for orderings
// whose values are computed outside the record (a join, a relevance score).
type Threshold struct {
	Key   order.Key
	Value order.Value
}

// Builder expands cursor positions into threshold predicates for one
// ordering. It is a value; build one per request.
type Builder struct {
	spec       order.Spec
	thresholds []Threshold
}

func NewBuilder(spec order.Spec, thresholds ...Threshold) Builder {
	return Builder{spec: spec, thresholds: thresholds}
}

// Spec returns the effective ordering: the builder's spec with every
// threshold key whose field it lacks inserted directly above the final
// tie-breaker key.
func (b Builder) Spec() order.Spec {
	spec, _ := b.merge(nil)
	return spec
}

// merge applies thresholds to spec and its position values. A threshold on a
// field already in the spec overrides the cursor value for that key.
func (b Builder) merge(values []order.Value) (order.Spec, []order.Value) {
	spec := b.spec.Clone()
	if values != nil {
		values = append([]order.Value(nil), values...)
	}
	for _, t := range b.thresholds {
		if i := spec.Index(t.Key.Field); i >= 0 {
			if values != nil {
				values[i] = t.Value
			}
			continue
		}
		at := len(spec) - 1
		if at < 0 {
			at = 0
		}
		spec = insert(spec, at, t.Key)
		if values != nil {
			values = insert(values, at, t.Value)
		}
	}
	return spec, values
}

func insert[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Build returns the predicate selecting records strictly on side of the
// position whose key values are values. values must align with the
// builder's spec, not the effective one.
//
// For keys k1..kn the predicate is
//
//	(k1 op1 v1) OR (k1 = v1 AND k2 op2 v2) OR ... OR (k1 = v1 AND ... AND kn opn vn)
//
// where opi is > when ki ascends and side is After, or ki descends and side
// is Before, and < otherwise.
func (b Builder) Build(values []order.Value, side Side) (Predicate, error) {
	if len(b.spec) == 0 {
		return nil, fmt.Errorf("%w: empty ordering", ErrPositionMismatch)
	}
	if len(values) != len(b.spec) {
		return nil, fmt.Errorf("%w: %d values for %d keys", ErrPositionMismatch, len(values), len(b.spec))
	}
	spec, values := b.merge(values)

	terms := make(Or, 0, len(spec))
	for i, k := range spec {
		term := make(And, 0, i+1)
		for j := 0; j < i; j++ {
			term = append(term, Compare{Field: spec[j].Field, Type: spec[j].Type, Op: Eq, Value: values[j]})
		}
		term = append(term, Compare{Field: k.Field, Type: k.Type, Op: Strict(k.Direction, side), Value: values[i]})
		terms = append(terms, flattenAnd(term))
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

// Strict returns the operator keeping records strictly on side of a value
// for a key sorted in direction d.
func Strict(d order.Direction, side Side) Op {
	if (d == order.Asc) == (side == After) {
		return Gt
	}
	return Lt
}

func flattenAnd(a And) Predicate {
	if len(a) == 1 {
		return a[0]
	}
	return a
}
