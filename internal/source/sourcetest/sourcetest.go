// Package sourcetest provides a conformance test suite for driver.Store
// implementations. Every backend must order, filter and page records the
// same way.
package sourcetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hookdeck/relaycursor/internal/connection"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/pagination"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Harness provides the test infrastructure for a source implementation.
// Stores must use driver.DefaultSchema.
type Harness interface {
	MakeSource(ctx context.Context) (driver.Store, error)
	// FlushWrites makes all inserted records visible to Fetch. Eventually
	// consistent stores force their merges here; others do nothing.
	FlushWrites(ctx context.Context) error
	Close()
}

// HarnessMaker creates a new Harness for each test group.
type HarnessMaker func(ctx context.Context, t *testing.T) (Harness, error)

// RunConformanceTests executes the full conformance suite:
//   - Fetch: the driver contract (filters, limits, predicates, schema errors)
//   - Pagination: Relay traversal through connection.Resolver
//   - Ordering: multi-key orderings, value types and NULLs
func RunConformanceTests(t *testing.T, newHarness HarnessMaker) {
	t.Helper()

	t.Run("Fetch", func(t *testing.T) {
		testFetch(t, newHarness)
	})
	t.Run("Pagination", func(t *testing.T) {
		testPagination(t, newHarness)
	})
	t.Run("Ordering", func(t *testing.T) {
		testOrdering(t, newHarness)
	})
}

const resource = "rec"

// baseTime has no sub-microsecond part so every backend stores it exactly.
var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture scopes each test to its own category so tests can share a store.
type fixture struct {
	h     Harness
	store driver.Store
}

func newFixture(t *testing.T, newHarness HarnessMaker) *fixture {
	t.Helper()

	ctx := context.Background()
	h, err := newHarness(ctx, t)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	store, err := h.MakeSource(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &fixture{h: h, store: store}
}

// newScope returns a fresh category value.
func newScope(t *testing.T) string {
	t.Helper()
	id, err := newScopeID()
	require.NoError(t, err)
	return id
}

// Scopes are lowercase alphanumerics so that every backend collates record
// IDs built from them byte-wise.
func newScopeID() (string, error) {
	id, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 12)
	if err != nil {
		return "", err
	}
	return "c" + id, nil
}

func scopeFilter(scope string, extra ...driver.Condition) driver.Filter {
	return driver.Filter{Conditions: append([]driver.Condition{
		{Field: order.Field{Name: "category"}, Op: driver.OpEq, Value: scope},
	}, extra...)}
}

// rec builds a record of scope. IDs sort in n order.
func rec(scope string, n int, fields map[string]any, meta map[string]any) driver.Record {
	f := map[string]any{"category": scope}
	for k, v := range fields {
		f[k] = v
	}
	return driver.Record{ID: fmt.Sprintf("%s_%03d", scope, n), Fields: f, Meta: meta}
}

func (f *fixture) insert(t *testing.T, ctx context.Context, records ...driver.Record) {
	t.Helper()
	require.NoError(t, f.store.InsertMany(ctx, records))
	require.NoError(t, f.h.FlushWrites(ctx))
}

func (f *fixture) resolver(opts ...connection.Option) *connection.Resolver {
	return connection.New(f.store, append([]connection.Option{connection.WithResource(resource)}, opts...)...)
}

func ids(records []driver.Record) []string {
	return lo.Map(records, func(r driver.Record, _ int) string { return r.ID })
}

func ptr(n int) *int { return &n }

// resolve returns one page of scope.
func resolve(t *testing.T, ctx context.Context, r *connection.Resolver, scope string, ord []order.RawInput, page pagination.PageRequest) *connection.Page {
	t.Helper()
	res, err := r.Resolve(ctx, connection.Request{Page: page, Order: ord, Filter: scopeFilter(scope)})
	require.NoError(t, err)
	return res
}

// walkForward collects every record of scope by following endCursor.
func walkForward(t *testing.T, ctx context.Context, r *connection.Resolver, scope string, ord []order.RawInput, size int) []string {
	t.Helper()
	var out []string
	page := resolve(t, ctx, r, scope, ord, pagination.PageRequest{First: ptr(size)})
	out = append(out, ids(page.Nodes)...)
	for page.PageInfo.HasNextPage {
		page = resolve(t, ctx, r, scope, ord, pagination.PageRequest{First: ptr(size), After: *page.PageInfo.EndCursor})
		out = append(out, ids(page.Nodes)...)
		require.LessOrEqual(t, len(out), 1000, "runaway traversal")
	}
	return out
}

// walkBackward collects every record of scope by following startCursor.
func walkBackward(t *testing.T, ctx context.Context, r *connection.Resolver, scope string, ord []order.RawInput, size int) []string {
	t.Helper()
	page := resolve(t, ctx, r, scope, ord, pagination.PageRequest{Last: ptr(size)})
	out := ids(page.Nodes)
	for page.PageInfo.HasPreviousPage {
		page = resolve(t, ctx, r, scope, ord, pagination.PageRequest{Last: ptr(size), Before: *page.PageInfo.StartCursor})
		out = append(ids(page.Nodes), out...)
		require.LessOrEqual(t, len(out), 1000, "runaway traversal")
	}
	return out
}

// groundTruth fetches every record of scope in one unpaginated query.
func (f *fixture) groundTruth(t *testing.T, ctx context.Context, r *connection.Resolver, scope string, ord []order.RawInput) []driver.Record {
	t.Helper()
	spec, err := r.Spec(ord)
	require.NoError(t, err)
	all, err := f.store.Fetch(ctx, driver.FetchRequest{Filter: scopeFilter(scope), Spec: spec})
	require.NoError(t, err)
	assertSorted(t, all, spec)
	return all
}

// assertSorted checks that records are strictly increasing under spec.
func assertSorted(t *testing.T, records []driver.Record, spec order.Spec) {
	t.Helper()
	for i := 1; i < len(records); i++ {
		a, b := records[i-1], records[i]
		c := 0
		for _, k := range spec {
			cmp, err := order.Compare(a.Value(k.Field), b.Value(k.Field), k.Type)
			require.NoError(t, err)
			if k.Direction == order.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				c = cmp
				break
			}
		}
		assert.Negative(t, c, "%s must sort before %s under %s", a.ID, b.ID, spec)
	}
}
