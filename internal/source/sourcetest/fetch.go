package sourcetest

import (
	"context"
	"testing"
	"time"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	titleField     = order.Field{Name: "title"}
	priceField     = order.Field{Name: "price"}
	publishedField = order.Field{Name: "published_at"}
	byID           = order.Spec{{Field: order.IDField}}
)

// testFetch exercises the driver contract directly.
func testFetch(t *testing.T, newHarness HarnessMaker) {
	t.Helper()

	f := newFixture(t, newHarness)
	ctx := context.Background()

	t.Run("InsertAndFetch", func(t *testing.T) {
		scope := newScope(t)
		published := baseTime.Add(90 * time.Minute)
		f.insert(t, ctx,
			rec(scope, 2, map[string]any{"title": "beta", "price": 12.5, "published_at": published}, map[string]any{"color": "red"}),
			rec(scope, 1, map[string]any{"title": "alpha"}, nil),
		)

		spec := order.Spec{{Field: order.Field{Name: "color", Meta: true}}, {Field: order.IDField}}
		got, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter(scope), Spec: spec})
		require.NoError(t, err)
		require.Equal(t, []string{scope + "_001", scope + "_002"}, ids(got), "missing meta sorts first")

		first, second := got[0], got[1]
		assert.Equal(t, "alpha", first.Value(titleField).Raw)
		assert.True(t, first.Value(priceField).Null)
		assert.True(t, first.Value(publishedField).Null)
		assert.True(t, first.Value(order.Field{Name: "color", Meta: true}).Null)

		assert.Equal(t, "beta", second.Value(titleField).Raw)
		assertSame(t, order.NewValue("12.5"), second.Value(priceField), order.Numeric)
		assertSame(t, order.ValueOf(published), second.Value(publishedField), order.Date)
		assert.Equal(t, "red", second.Value(order.Field{Name: "color", Meta: true}).Raw)
		assert.Equal(t, scope, second.Value(order.Field{Name: "category"}).Raw)
	})

	t.Run("Upsert", func(t *testing.T) {
		scope := newScope(t)
		f.insert(t, ctx, rec(scope, 1, map[string]any{"title": "old"}, map[string]any{"k": "v1"}))
		f.insert(t, ctx, rec(scope, 1, map[string]any{"title": "new"}, map[string]any{"k": "v2"}))

		spec := order.Spec{{Field: order.Field{Name: "k", Meta: true}}, {Field: order.IDField}}
		got, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter(scope), Spec: spec})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new", got[0].Value(titleField).Raw)
		assert.Equal(t, "v2", got[0].Value(order.Field{Name: "k", Meta: true}).Raw)
	})

	t.Run("MissingID", func(t *testing.T) {
		err := f.store.InsertMany(ctx, []driver.Record{{Fields: map[string]any{"title": "x"}}})
		assert.ErrorIs(t, err, driver.ErrInvalidRecord)
	})

	t.Run("Limit", func(t *testing.T) {
		scope := newScope(t)
		f.insert(t, ctx, rec(scope, 1, nil, nil), rec(scope, 2, nil, nil), rec(scope, 3, nil, nil))

		got, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter(scope), Spec: byID, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{scope + "_001", scope + "_002"}, ids(got))

		got, err = f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter(scope), Spec: byID.Invert(), Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{scope + "_003", scope + "_002"}, ids(got))
	})

	t.Run("Filters", func(t *testing.T) {
		scope := newScope(t)
		f.insert(t, ctx,
			rec(scope, 1, map[string]any{"title": "a", "price": 5.0}, nil),
			rec(scope, 2, map[string]any{"title": "b", "price": 10.0}, nil),
			rec(scope, 3, map[string]any{"price": 20.0}, nil),
			rec(scope, 4, map[string]any{"title": "b"}, nil),
		)

		tests := []struct {
			name string
			cond driver.Condition
			want []int
		}{
			{"eq", driver.Condition{Field: titleField, Op: driver.OpEq, Value: "b"}, []int{2, 4}},
			{"eq null", driver.Condition{Field: titleField, Op: driver.OpEq, Value: nil}, []int{3}},
			{"neq keeps null", driver.Condition{Field: titleField, Op: driver.OpNeq, Value: "b"}, []int{1, 3}},
			{"neq null", driver.Condition{Field: titleField, Op: driver.OpNeq, Value: nil}, []int{1, 2, 4}},
			{"in", driver.Condition{Field: titleField, Op: driver.OpIn, Value: []any{"a", "z"}}, []int{1}},
			{"gt numeric", driver.Condition{Field: priceField, Op: driver.OpGt, Type: order.Numeric, Value: "5"}, []int{2, 3}},
			{"gte numeric", driver.Condition{Field: priceField, Op: driver.OpGte, Type: order.Numeric, Value: 10}, []int{2, 3}},
			{"lt keeps null", driver.Condition{Field: priceField, Op: driver.OpLt, Type: order.Numeric, Value: "10"}, []int{1, 4}},
			{"lte numeric", driver.Condition{Field: priceField, Op: driver.OpLte, Type: order.Numeric, Value: "10"}, []int{1, 2, 4}},
			{"id", driver.Condition{Field: order.IDField, Op: driver.OpEq, Value: scope + "_003"}, []int{3}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter(scope, tt.cond), Spec: byID})
				require.NoError(t, err)
				assert.Equal(t, scopedIDs(scope, tt.want...), ids(got))
			})
		}
	})

	t.Run("InvalidFilter", func(t *testing.T) {
		for _, cond := range []driver.Condition{
			{Field: titleField, Op: "like", Value: "a%"},
			{Field: titleField, Op: driver.OpGt, Value: nil},
			{Field: titleField, Op: driver.OpIn, Value: "a"},
			{Field: titleField, Op: driver.OpIn, Value: []any{"a", nil}},
		} {
			_, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter("none", cond), Spec: byID})
			assert.ErrorIs(t, err, driver.ErrInvalidFilter, "%+v", cond)
		}
	})

	t.Run("UnknownField", func(t *testing.T) {
		spec := order.Spec{{Field: order.Field{Name: "nope"}}, {Field: order.IDField}}
		_, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter("none"), Spec: spec})
		assert.ErrorIs(t, err, driver.ErrUnknownField)

		cond := driver.Condition{Field: order.Field{Name: "nope"}, Op: driver.OpEq, Value: "x"}
		_, err = f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter("none", cond), Spec: byID})
		assert.ErrorIs(t, err, driver.ErrUnknownField)
	})

	t.Run("PredicateAndFilter", func(t *testing.T) {
		scope := newScope(t)
		for i := 1; i <= 6; i++ {
			f.insert(t, ctx, rec(scope, i, map[string]any{"price": float64(i % 3)}, nil))
		}

		spec := order.Spec{
			{Field: priceField, Direction: order.Desc, Type: order.Numeric},
			{Field: order.IDField, Direction: order.Desc},
		}
		p, err := predicate.NewBuilder(spec).Build([]order.Value{order.NewValue("2"), order.NewValue(scope + "_005")}, predicate.After)
		require.NoError(t, err)

		cond := driver.Condition{Field: priceField, Op: driver.OpNeq, Type: order.Numeric, Value: "0"}
		got, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter(scope, cond), Spec: spec, Predicate: p})
		require.NoError(t, err)
		// Ordered: (2,_005) (2,_002) (1,_004) (1,_001) (0,...) excluded by the filter.
		assert.Equal(t, scopedIDs(scope, 2, 4, 1), ids(got))
	})
}

func scopedIDs(scope string, ns ...int) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = rec(scope, n, nil, nil).ID
	}
	return out
}

func assertSame(t *testing.T, want, got order.Value, typ order.ValueType) {
	t.Helper()
	c, err := order.Compare(want, got, typ)
	require.NoError(t, err)
	assert.Zero(t, c, "want %s, got %s", want, got)
}
