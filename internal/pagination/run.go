package pagination

import (
	"context"
	"slices"

	"github.com/hookdeck/relaycursor/internal/cursor"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
)

// Config contains all parameters for a paginated query.
type Config[T any] struct {
	Request    PageRequest
	Spec       order.Spec // normalized, without threshold keys
	Thresholds []predicate.Threshold
	Options    Options

	Fetch func(context.Context, QueryInput) ([]T, error)
	ID    func(T) string
	Value func(T, order.Field) order.Value
}

// QueryInput is passed to Fetch with the computed query parameters.
type QueryInput struct {
	Spec      order.Spec // physical ordering
	Predicate predicate.Predicate
	Limit     int // page size plus one
	Direction Direction
}

// Run plans the request, fetches one record more than the page size to learn
// whether more exist, and assembles the page in requested order.
func Run[T any](ctx context.Context, cfg Config[T]) (*Page[T], error) {
	plan, err := NewPlan(cfg.Request, cfg.Spec, cfg.Thresholds, cfg.Options)
	if err != nil {
		return nil, err
	}

	items, err := cfg.Fetch(ctx, QueryInput{
		Spec:      plan.QuerySpec,
		Predicate: plan.Predicate,
		Limit:     plan.Limit + 1,
		Direction: plan.Direction,
	})
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > plan.Limit
	if hasMore {
		items = items[:plan.Limit]
	}
	if plan.Direction == Backward {
		items = slices.Clone(items)
		slices.Reverse(items)
	}

	return Assemble(items, plan, hasMore, func(item T) string {
		pos := cursor.NewPosition(cfg.ID(item), cfg.Spec, func(f order.Field) order.Value {
			return cfg.Value(item, f)
		})
		return cursor.EncodePosition(cfg.Options.Resource, pos)
	}), nil
}
