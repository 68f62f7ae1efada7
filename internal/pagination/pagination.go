// Package pagination plans and assembles Relay-style cursor connections.
// It decides the query direction, cursor predicate and fetch size for a page
// request, then turns the fetched records into edges and page info.
package pagination

import (
	"errors"
	"fmt"

	"github.com/hookdeck/relaycursor/internal/cursor"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
)

var (
	ErrFirstAndLast  = errors.New("first and last cannot be combined")
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrInvalidCursor = errors.New("invalid cursor argument")
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Direction indicates whether pagination is moving forward or backward.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// PageRequest holds the Relay connection arguments.
type PageRequest struct {
	First  *int
	Last   *int
	After  string
	Before string
}

// Options configure planning. The zero value uses DefaultLimit, MaxLimit
// and lenient cursors.
type Options struct {
	// Resource scopes cursors so one connection rejects another's cursors.
	Resource     string
	DefaultLimit int
	MaxLimit     int
	// Strict makes an undecodable or mismatched cursor an error instead of
	// ignoring it.
	Strict bool
	// OnInvalidCursor is told about every cursor ignored in lenient mode.
	OnInvalidCursor func(arg string, err error)
}

func (o Options) defaultLimit() int {
	if o.DefaultLimit > 0 {
		return o.DefaultLimit
	}
	return DefaultLimit
}

func (o Options) maxLimit() int {
	if o.MaxLimit > 0 {
		return o.MaxLimit
	}
	return MaxLimit
}

// Plan is the outcome of planning a page request.
type Plan struct {
	Direction Direction
	Limit     int
	// Spec is the requested ordering including threshold keys.
	Spec order.Spec
	// QuerySpec is the ordering to fetch in: Spec, inverted for backward
	// pages.
	QuerySpec order.Spec
	// Predicate restricts the fetch to the cursor window. Nil when no
	// cursor applies.
	Predicate predicate.Predicate
	HasAfter  bool
	HasBefore bool
}

// NewPlan validates req and derives the query for it. spec must be
// normalized. A cursor that cannot be decoded, or that was minted under
// another ordering, is ignored unless opts.Strict is set.
func NewPlan(req PageRequest, spec order.Spec, thresholds []predicate.Threshold, opts Options) (Plan, error) {
	if req.First != nil && req.Last != nil {
		return Plan{}, ErrFirstAndLast
	}

	plan := Plan{Direction: Forward, Limit: opts.defaultLimit()}
	switch {
	case req.First != nil:
		if *req.First <= 0 {
			return Plan{}, fmt.Errorf("%w: first=%d", ErrInvalidAmount, *req.First)
		}
		plan.Limit = *req.First
	case req.Last != nil:
		if *req.Last <= 0 {
			return Plan{}, fmt.Errorf("%w: last=%d", ErrInvalidAmount, *req.Last)
		}
		plan.Limit = *req.Last
		plan.Direction = Backward
	}
	plan.Limit = min(plan.Limit, opts.maxLimit())

	builder := predicate.NewBuilder(spec, thresholds...)
	plan.Spec = builder.Spec()
	plan.QuerySpec = plan.Spec
	if plan.Direction == Backward {
		plan.QuerySpec = plan.Spec.Invert()
	}

	var preds []predicate.Predicate
	for _, arg := range []struct {
		name  string
		value string
		side  predicate.Side
		set   *bool
	}{
		{"after", req.After, predicate.After, &plan.HasAfter},
		{"before", req.Before, predicate.Before, &plan.HasBefore},
	} {
		if arg.value == "" {
			continue
		}
		p, err := cursorPredicate(builder, spec, arg.value, arg.side, opts.Resource)
		if err != nil {
			if opts.Strict {
				return Plan{}, fmt.Errorf("%w: %s: %w", ErrInvalidCursor, arg.name, err)
			}
			if opts.OnInvalidCursor != nil {
				opts.OnInvalidCursor(arg.name, err)
			}
			continue
		}
		*arg.set = true
		preds = append(preds, p)
	}
	plan.Predicate = predicate.Conjoin(preds...)

	return plan, nil
}

func cursorPredicate(b predicate.Builder, spec order.Spec, encoded string, side predicate.Side, resource string) (predicate.Predicate, error) {
	pos, err := cursor.DecodePosition(encoded, resource)
	if err != nil {
		return nil, err
	}
	if err := pos.Validate(spec); err != nil {
		return nil, err
	}
	return b.Build(pos.ValuesFor(spec), side)
}
