package sourcetest

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/hookdeck/relaycursor/internal/connection"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/pagination"
	"github.com/hookdeck/relaycursor/internal/pagination/paginationtest"
	"github.com/hookdeck/relaycursor/internal/source/driver"
)

// testPagination runs paginationtest.Suite over orderings of each value type.
func testPagination(t *testing.T, newHarness HarnessMaker) {
	t.Helper()

	f := newFixture(t, newHarness)
	r := f.resolver()

	t.Run("ByDate", func(t *testing.T) {
		f.suite(r, "ByDate", order.RawInput{Field: "published_at", Type: "DATE"},
			func(scope string, i int) driver.Record {
				return rec(scope, i, map[string]any{
					"title":        "same",
					"published_at": baseTime.Add(time.Duration(i) * time.Hour),
				}, nil)
			}, nil, nil).Run(t)
	})

	// Numeric meta values sort 2 < 10, unlike their strings.
	t.Run("ByNumericMeta", func(t *testing.T) {
		f.suite(r, "ByNumericMeta", order.RawInput{Field: "seq", Meta: true, Type: "NUMERIC"},
			func(scope string, i int) driver.Record {
				return rec(scope, 20-i, nil, map[string]any{"seq": strconv.Itoa(i * 5)})
			}, nil, nil).Run(t)
	})

	// Every item matches; InsertMany adds a filtered-out decoy after each
	// one in title order.
	t.Run("WithFilter", func(t *testing.T) {
		cond := driver.Condition{Field: priceField, Op: driver.OpGt, Type: order.Numeric, Value: "0"}
		s := f.suite(r, "WithFilter", order.RawInput{Field: "title"},
			func(scope string, i int) driver.Record {
				return rec(scope, i, map[string]any{
					"title": fmt.Sprintf("item%03d", i),
					"price": float64(i%3 + 1),
				}, nil)
			},
			[]driver.Condition{cond},
			func(r driver.Record) bool { return r.Fields["price"].(float64) > 0 },
		)
		s.InsertMany = func(ctx context.Context, items []driver.Record) error {
			all := make([]driver.Record, 0, 2*len(items))
			for i, item := range items {
				decoy := rec(item.Fields["category"].(string), 500+i, map[string]any{
					"title": item.Fields["title"].(string) + "x",
					"price": float64(0),
				}, nil)
				all = append(all, item, decoy)
			}
			return f.store.InsertMany(ctx, all)
		}
		s.Run(t)
	})
}

// suite builds a paginationtest.Suite whose items sort by key in index
// order. Each run of the suite's setup gets a fresh scope.
func (f *fixture) suite(r *connection.Resolver, name string, key order.RawInput, newItem func(scope string, i int) driver.Record, extra []driver.Condition, matches func(driver.Record) bool) paginationtest.Suite[driver.Record] {
	var scope string
	return paginationtest.Suite[driver.Record]{
		Name: name,
		Cleanup: func(ctx context.Context) error {
			id, err := newScopeID()
			scope = id
			return err
		},
		NewItem: func(i int) driver.Record {
			return newItem(scope, i)
		},
		InsertMany: f.store.InsertMany,
		AfterInsert: func(ctx context.Context) error {
			return f.h.FlushWrites(ctx)
		},
		List: func(ctx context.Context, opts paginationtest.ListOpts) (paginationtest.ListResult[driver.Record], error) {
			k := key
			if opts.Desc {
				k.Direction = "DESC"
			}
			page, err := r.Resolve(ctx, connection.Request{
				Page: pagination.PageRequest{
					First:  opts.First,
					Last:   opts.Last,
					After:  opts.After,
					Before: opts.Before,
				},
				Order:  []order.RawInput{k},
				Filter: scopeFilter(scope, extra...),
			})
			if err != nil {
				return paginationtest.ListResult[driver.Record]{}, err
			}
			return paginationtest.ListResult[driver.Record]{Items: page.Nodes, PageInfo: page.PageInfo}, nil
		},
		GetID:   func(r driver.Record) string { return r.ID },
		Matches: matches,
	}
}
