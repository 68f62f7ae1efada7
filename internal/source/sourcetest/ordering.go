package sourcetest

import (
	"context"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/hookdeck/relaycursor/internal/connection"
	"github.com/hookdeck/relaycursor/internal/cursor"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/pagination"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOrdering checks multi-key orderings against the unpaginated ground
// truth, for every value type and for NULLs.
func testOrdering(t *testing.T, newHarness HarnessMaker) {
	t.Helper()

	f := newFixture(t, newHarness)
	r := f.resolver()
	ctx := context.Background()

	// Five records tie on the only requested key; the ID tie-breaker must
	// carry pagination through them.
	t.Run("IdenticalValues", func(t *testing.T) {
		scope := newScope(t)
		for i := 1; i <= 5; i++ {
			f.insert(t, ctx, rec(scope, i, nil, map[string]any{"custom": "same"}))
		}
		ord := []order.RawInput{{Field: "custom", Meta: true, Direction: "ASC"}}

		page := resolve(t, ctx, r, scope, ord, pagination.PageRequest{First: ptr(2)})
		assert.Equal(t, scopedIDs(scope, 1, 2), ids(page.Nodes))
		assert.True(t, page.PageInfo.HasNextPage)
		assert.False(t, page.PageInfo.HasPreviousPage)

		page = resolve(t, ctx, r, scope, ord, pagination.PageRequest{First: ptr(2), After: *page.PageInfo.EndCursor})
		assert.Equal(t, scopedIDs(scope, 3, 4), ids(page.Nodes))
		assert.True(t, page.PageInfo.HasNextPage)
		assert.True(t, page.PageInfo.HasPreviousPage)

		page = resolve(t, ctx, r, scope, ord, pagination.PageRequest{First: ptr(2), After: *page.PageInfo.EndCursor})
		assert.Equal(t, scopedIDs(scope, 5), ids(page.Nodes))
		assert.False(t, page.PageInfo.HasNextPage)
	})

	t.Run("MixedDirections", func(t *testing.T) {
		scope := newScope(t)
		faker := gofakeit.New(42)
		titles := []string{"anchor", "beacon", "cobalt", "dune"}
		var records []driver.Record
		for i := 1; i <= 37; i++ {
			records = append(records, rec(scope, i, map[string]any{
				"title": titles[faker.Number(0, len(titles)-1)],
				"price": float64(faker.Number(1, 4) * 10),
			}, nil))
		}
		f.insert(t, ctx, records...)

		for _, ord := range [][]order.RawInput{
			{{Field: "price", Direction: "DESC", Type: "NUMERIC"}, {Field: "title", Direction: "DESC"}, {Field: "id", Direction: "DESC"}},
			{{Field: "price", Direction: "DESC", Type: "NUMERIC"}, {Field: "title", Direction: "ASC"}},
			{{Field: "title", Direction: "ASC"}, {Field: "price", Direction: "DESC", Type: "NUMERIC"}, {Field: "id", Direction: "ASC"}},
		} {
			want := ids(f.groundTruth(t, ctx, r, scope, ord))
			require.Len(t, want, len(records))
			for _, size := range []int{1, 4, 7} {
				assert.Equal(t, want, walkForward(t, ctx, r, scope, ord, size), "forward size %d %v", size, ord)
				assert.Equal(t, want, walkBackward(t, ctx, r, scope, ord, size), "backward size %d %v", size, ord)
			}
		}
	})

	t.Run("NumericVersusStringMeta", func(t *testing.T) {
		scope := newScope(t)
		for i, rank := range []string{"9", "100", "10", "0.5", "2.5"} {
			f.insert(t, ctx, rec(scope, i+1, nil, map[string]any{"rank": rank}))
		}

		numeric := []order.RawInput{{Field: "rank", Meta: true, Type: "NUMERIC"}}
		assert.Equal(t, scopedIDs(scope, 4, 5, 1, 3, 2), walkForward(t, ctx, r, scope, numeric, 2))
		assert.Equal(t, scopedIDs(scope, 4, 5, 1, 3, 2), walkBackward(t, ctx, r, scope, numeric, 2))

		str := []order.RawInput{{Field: "rank", Meta: true, Type: "CHAR"}}
		assert.Equal(t, scopedIDs(scope, 4, 3, 2, 5, 1), walkForward(t, ctx, r, scope, str, 2))
	})

	t.Run("Dates", func(t *testing.T) {
		scope := newScope(t)
		stamps := []time.Time{
			baseTime.Add(72 * time.Hour),
			baseTime.Add(-time.Hour),
			baseTime.Add(1500 * time.Millisecond),
			baseTime,
		}
		for i, ts := range stamps {
			f.insert(t, ctx, rec(scope, i+1,
				map[string]any{"published_at": ts},
				map[string]any{"released": ts.Format("2006-01-02 15:04:05.000")},
			))
		}
		want := scopedIDs(scope, 2, 4, 3, 1)

		native := []order.RawInput{{Field: "published_at", Type: "DATE"}}
		assert.Equal(t, want, walkForward(t, ctx, r, scope, native, 3))
		meta := []order.RawInput{{Field: "released", Meta: true, Type: "DATETIME"}}
		assert.Equal(t, want, walkForward(t, ctx, r, scope, meta, 3))
		assert.Equal(t, want, walkBackward(t, ctx, r, scope, meta, 1))

		slices.Reverse(want)
		desc := []order.RawInput{{Field: "published_at", Type: "DATE", Direction: "DESC"}}
		assert.Equal(t, want, walkForward(t, ctx, r, scope, desc, 3))
	})

	// NULL sorts below every value: first ascending, last descending.
	t.Run("NullsSortLowest", func(t *testing.T) {
		scope := newScope(t)
		titles := []any{"mango", nil, "apple", nil, "kiwi", nil}
		for i, title := range titles {
			f.insert(t, ctx, rec(scope, i+1, map[string]any{"title": title}, nil))
		}

		asc := []order.RawInput{{Field: "title"}}
		want := scopedIDs(scope, 2, 4, 6, 3, 5, 1)
		assert.Equal(t, want, ids(f.groundTruth(t, ctx, r, scope, asc)))
		for _, size := range []int{1, 2, 4} {
			assert.Equal(t, want, walkForward(t, ctx, r, scope, asc, size))
			assert.Equal(t, want, walkBackward(t, ctx, r, scope, asc, size))
		}

		desc := []order.RawInput{{Field: "title", Direction: "DESC"}}
		want = scopedIDs(scope, 1, 5, 3, 6, 4, 2)
		for _, size := range []int{1, 2, 4} {
			assert.Equal(t, want, walkForward(t, ctx, r, scope, desc, size))
			assert.Equal(t, want, walkBackward(t, ctx, r, scope, desc, size))
		}
	})

	t.Run("MissingMetaIsNull", func(t *testing.T) {
		scope := newScope(t)
		f.insert(t, ctx,
			rec(scope, 1, nil, map[string]any{"score": "3"}),
			rec(scope, 2, nil, nil),
			rec(scope, 3, nil, map[string]any{"score": "1"}),
			rec(scope, 4, nil, map[string]any{"other": "9"}),
		)

		ord := []order.RawInput{{Field: "score", Meta: true, Type: "NUMERIC"}}
		assert.Equal(t, scopedIDs(scope, 2, 4, 3, 1), walkForward(t, ctx, r, scope, ord, 1))
		assert.Equal(t, scopedIDs(scope, 2, 4, 3, 1), walkBackward(t, ctx, r, scope, ord, 3))
	})

	// A threshold overrides the cursor's value for its key.
	t.Run("Threshold", func(t *testing.T) {
		scope := newScope(t)
		for i := 1; i <= 6; i++ {
			f.insert(t, ctx, rec(scope, i, map[string]any{"price": float64(i * 10)}, nil))
		}
		ord := []order.RawInput{{Field: "price", Type: "NUMERIC"}}
		first := resolve(t, ctx, r, scope, ord, pagination.PageRequest{First: ptr(1)})
		require.Len(t, first.Nodes, 1)

		page, err := r.Resolve(ctx, connection.Request{
			Page:   pagination.PageRequest{First: ptr(10), After: *first.PageInfo.EndCursor},
			Order:  ord,
			Filter: scopeFilter(scope),
			Thresholds: []predicate.Threshold{{
				Key:   order.Key{Field: priceField, Type: order.Numeric},
				Value: order.NewValue("35"),
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, scopedIDs(scope, 4, 5, 6), ids(page.Nodes))
	})

	// A threshold on a field outside the ordering is inserted above the ID
	// tie-breaker, so ties on title order by price across pages.
	t.Run("InsertedThreshold", func(t *testing.T) {
		scope := newScope(t)
		for i, v := range []struct {
			title string
			price float64
		}{{"a", 30}, {"a", 10}, {"b", 20}, {"a", 20}, {"b", 5}, {"c", 1}, {"b", 20}, {"a", 10}} {
			f.insert(t, ctx, rec(scope, i+1, map[string]any{"title": v.title, "price": v.price}, nil))
		}
		want := scopedIDs(scope, 2, 8, 4, 1, 5, 3, 7, 6)

		ord := []order.RawInput{{Field: "title"}}
		page := func(req pagination.PageRequest, at *driver.Record) *connection.Page {
			th := predicate.Threshold{Key: order.Key{Field: priceField, Type: order.Numeric}}
			if at != nil {
				th.Value = at.Value(priceField)
			}
			res, err := r.Resolve(ctx, connection.Request{
				Page:       req,
				Order:      ord,
				Filter:     scopeFilter(scope),
				Thresholds: []predicate.Threshold{th},
			})
			require.NoError(t, err)
			return res
		}

		for _, size := range []int{1, 2, 3} {
			res := page(pagination.PageRequest{First: ptr(size)}, nil)
			got := ids(res.Nodes)
			for res.PageInfo.HasNextPage {
				last := res.Nodes[len(res.Nodes)-1]
				res = page(pagination.PageRequest{First: ptr(size), After: *res.PageInfo.EndCursor}, &last)
				got = append(got, ids(res.Nodes)...)
				require.LessOrEqual(t, len(got), len(want), "runaway traversal")
			}
			assert.Equal(t, want, got, "forward, size %d", size)

			res = page(pagination.PageRequest{Last: ptr(size)}, nil)
			got = ids(res.Nodes)
			for res.PageInfo.HasPreviousPage {
				first := res.Nodes[0]
				res = page(pagination.PageRequest{Last: ptr(size), Before: *res.PageInfo.StartCursor}, &first)
				got = append(ids(res.Nodes), got...)
				require.LessOrEqual(t, len(got), len(want), "runaway traversal")
			}
			assert.Equal(t, want, got, "backward, size %d", size)
		}
	})

	// A cursor minted under another ordering is ignored, not misapplied.
	t.Run("CursorFromOtherOrdering", func(t *testing.T) {
		scope := newScope(t)
		for i := 1; i <= 4; i++ {
			f.insert(t, ctx, rec(scope, i, map[string]any{"title": "t" + strconv.Itoa(5-i)}, nil))
		}
		byTitle := []order.RawInput{{Field: "title"}}
		page := resolve(t, ctx, r, scope, byTitle, pagination.PageRequest{First: ptr(2)})
		require.Equal(t, scopedIDs(scope, 4, 3), ids(page.Nodes))

		byIDPage := resolve(t, ctx, r, scope, nil, pagination.PageRequest{First: ptr(2), After: *page.PageInfo.EndCursor})
		assert.Equal(t, scopedIDs(scope, 1, 2), ids(byIDPage.Nodes))
		assert.False(t, byIDPage.PageInfo.HasPreviousPage)

		strict := f.resolver(connection.WithStrictCursors())
		_, err := strict.Resolve(ctx, connection.Request{
			Page:   pagination.PageRequest{First: ptr(2), After: *page.PageInfo.EndCursor},
			Filter: scopeFilter(scope),
		})
		assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
		assert.ErrorIs(t, err, cursor.ErrSpecMismatch)
	})
}
