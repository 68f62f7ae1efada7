// Package paginationtest provides a reusable test suite for Relay connections.
package paginationtest

import (
	"context"
	"testing"

	"github.com/hookdeck/relaycursor/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ListOpts contains the connection arguments of one request.
type ListOpts struct {
	First  *int
	Last   *int
	After  string
	Before string
	Desc   bool // order by item index descending
}

// ListResult contains one resolved page.
type ListResult[T any] struct {
	Items    []T
	PageInfo pagination.PageInfo
}

// Suite is a reusable test suite for Relay cursor pagination.
//
// Items are created by index and List must order them by index, ascending
// unless opts.Desc is set. Ties in the underlying sort keys are fine as long
// as List breaks them consistently with index order.
//
//	suite := paginationtest.Suite[driver.Record]{
//	    Name:       "memsource",
//	    NewItem:    func(i int) driver.Record { ... },
//	    InsertMany: store.InsertMany,
//	    List:       func(ctx context.Context, opts ListOpts) (ListResult[driver.Record], error) { ... },
//	    GetID:      func(r driver.Record) string { return r.ID },
//	}
//	suite.Run(t)
//
// Use Matches when List applies a filter, to tell the suite which items
// should appear.
type Suite[T any] struct {
	Name        string
	NewItem     func(index int) T
	InsertMany  func(ctx context.Context, items []T) error
	List        func(ctx context.Context, opts ListOpts) (ListResult[T], error)
	GetID       func(T) string
	Matches     func(T) bool                    // optional
	AfterInsert func(ctx context.Context) error // optional
	Cleanup     func(ctx context.Context) error // optional
}

func (s Suite[T]) Run(t *testing.T) {
	t.Helper()

	t.Run("ForwardTraversal", s.testForwardTraversal)
	t.Run("BackwardTraversal", s.testBackwardTraversal)
	t.Run("RoundTrip", s.testRoundTrip)
	t.Run("Window", s.testWindow)
	t.Run("FirstPageNoPrevious", s.testFirstPageNoPrevious)
	t.Run("LastPageNoNext", s.testLastPageNoNext)
	t.Run("EmptyResults", s.testEmptyResults)
	t.Run("PartialLastPage", s.testPartialLastPage)
	t.Run("ExactPageBoundary", s.testExactPageBoundary)
	t.Run("SingleItem", s.testSingleItem)
	t.Run("OrderAsc", s.testOrderAsc)
	t.Run("OrderDesc", s.testOrderDesc)
	t.Run("DefaultAmount", s.testDefaultAmount)
	t.Run("FirstAndLastRejected", s.testFirstAndLastRejected)
	t.Run("MalformedCursorIgnored", s.testMalformedCursorIgnored)
}

func ptr(n int) *int { return &n }

// setup creates items and returns the ones List should return, in index
// order.
func (s Suite[T]) setup(t *testing.T, ctx context.Context, count int) []T {
	t.Helper()

	if s.Cleanup != nil {
		require.NoError(t, s.Cleanup(ctx))
	}

	items := make([]T, count)
	for i := 0; i < count; i++ {
		items[i] = s.NewItem(i)
	}
	if count > 0 {
		require.NoError(t, s.InsertMany(ctx, items))
	}
	if s.AfterInsert != nil {
		require.NoError(t, s.AfterInsert(ctx))
	}

	if s.Matches == nil {
		return items
	}
	var expected []T
	for _, item := range items {
		if s.Matches(item) {
			expected = append(expected, item)
		}
	}
	return expected
}

func (s Suite[T]) ids(items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = s.GetID(item)
	}
	return out
}

func (s Suite[T]) list(t *testing.T, ctx context.Context, opts ListOpts) ListResult[T] {
	t.Helper()
	res, err := s.List(ctx, opts)
	require.NoError(t, err)
	if len(res.Items) == 0 {
		assert.Nil(t, res.PageInfo.StartCursor, "empty page should have no start cursor")
		assert.Nil(t, res.PageInfo.EndCursor, "empty page should have no end cursor")
	} else {
		require.NotNil(t, res.PageInfo.StartCursor)
		require.NotNil(t, res.PageInfo.EndCursor)
	}
	return res
}

// testForwardTraversal follows endCursor until hasNextPage is false and
// expects every item exactly once, in order.
func (s Suite[T]) testForwardTraversal(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 10)

	var collected []T
	res := s.list(t, ctx, ListOpts{First: ptr(3)})
	assert.False(t, res.PageInfo.HasPreviousPage)
	collected = append(collected, res.Items...)

	for res.PageInfo.HasNextPage {
		res = s.list(t, ctx, ListOpts{First: ptr(3), After: *res.PageInfo.EndCursor})
		assert.True(t, res.PageInfo.HasPreviousPage, "page after a cursor has a previous page")
		collected = append(collected, res.Items...)
		require.LessOrEqual(t, len(collected), len(expected), "traversal returned too many items")
	}

	assert.Equal(t, s.ids(expected), s.ids(collected))
}

// testBackwardTraversal follows startCursor with last until hasPreviousPage
// is false.
func (s Suite[T]) testBackwardTraversal(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 10)

	res := s.list(t, ctx, ListOpts{Last: ptr(3)})
	assert.False(t, res.PageInfo.HasNextPage, "plain last has no next page")
	collected := res.Items

	for res.PageInfo.HasPreviousPage {
		res = s.list(t, ctx, ListOpts{Last: ptr(3), Before: *res.PageInfo.StartCursor})
		assert.True(t, res.PageInfo.HasNextPage, "page before a cursor has a next page")
		collected = append(append([]T{}, res.Items...), collected...)
		require.LessOrEqual(t, len(collected), len(expected), "traversal returned too many items")
	}

	assert.Equal(t, s.ids(expected), s.ids(collected))
}

// testRoundTrip moves forward one page and back again, expecting the same
// window.
func (s Suite[T]) testRoundTrip(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 9)
	if len(expected) < 6 {
		t.Skip("need at least 6 items for round trip test")
	}

	page1 := s.list(t, ctx, ListOpts{First: ptr(3)})
	require.True(t, page1.PageInfo.HasNextPage)
	page2 := s.list(t, ctx, ListOpts{First: ptr(3), After: *page1.PageInfo.EndCursor})
	back1 := s.list(t, ctx, ListOpts{Last: ptr(3), Before: *page2.PageInfo.StartCursor})

	assert.Equal(t, s.ids(page1.Items), s.ids(back1.Items))
	assert.False(t, back1.PageInfo.HasPreviousPage)
	assert.True(t, back1.PageInfo.HasNextPage)

	forward2 := s.list(t, ctx, ListOpts{First: ptr(3), After: *back1.PageInfo.EndCursor})
	assert.Equal(t, s.ids(page2.Items), s.ids(forward2.Items))
}

// testWindow combines after and before.
func (s Suite[T]) testWindow(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 8)
	if len(expected) < 8 {
		t.Skip("need 8 items for window test")
	}

	all := s.list(t, ctx, ListOpts{First: ptr(8)})
	require.Len(t, all.Items, 8)

	edges := s.list(t, ctx, ListOpts{First: ptr(1), After: ""})
	require.Len(t, edges.Items, 1)
	after := *edges.PageInfo.EndCursor

	last := s.list(t, ctx, ListOpts{Last: ptr(1)})
	require.Len(t, last.Items, 1)
	before := *last.PageInfo.StartCursor

	res := s.list(t, ctx, ListOpts{First: ptr(10), After: after, Before: before})
	assert.Equal(t, s.ids(expected[1:7]), s.ids(res.Items))
	assert.True(t, res.PageInfo.HasPreviousPage)
	assert.True(t, res.PageInfo.HasNextPage, "before cursor implies a next page")

	res = s.list(t, ctx, ListOpts{Last: ptr(2), After: after, Before: before})
	assert.Equal(t, s.ids(expected[5:7]), s.ids(res.Items))
	assert.True(t, res.PageInfo.HasPreviousPage)
	assert.True(t, res.PageInfo.HasNextPage)
}

func (s Suite[T]) testFirstPageNoPrevious(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 5)

	res := s.list(t, ctx, ListOpts{First: ptr(3)})
	assert.False(t, res.PageInfo.HasPreviousPage)
	assert.Equal(t, len(expected) > 3, res.PageInfo.HasNextPage)
}

func (s Suite[T]) testLastPageNoNext(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 5)
	if len(expected) == 0 {
		t.Skip("no items to test")
	}

	res := s.list(t, ctx, ListOpts{First: ptr(3)})
	for res.PageInfo.HasNextPage {
		res = s.list(t, ctx, ListOpts{First: ptr(3), After: *res.PageInfo.EndCursor})
	}
	assert.False(t, res.PageInfo.HasNextPage)
	if len(expected) > 3 {
		assert.True(t, res.PageInfo.HasPreviousPage)
	}
}

func (s Suite[T]) testEmptyResults(t *testing.T) {
	ctx := context.Background()
	s.setup(t, ctx, 0)

	for _, opts := range []ListOpts{{First: ptr(10)}, {Last: ptr(10)}} {
		res := s.list(t, ctx, opts)
		assert.Empty(t, res.Items)
		assert.False(t, res.PageInfo.HasNextPage)
		assert.False(t, res.PageInfo.HasPreviousPage)
	}
}

func (s Suite[T]) testPartialLastPage(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 7)
	if len(expected) == 0 {
		t.Skip("no items to test")
	}

	res := s.list(t, ctx, ListOpts{First: ptr(3)})
	for res.PageInfo.HasNextPage {
		res = s.list(t, ctx, ListOpts{First: ptr(3), After: *res.PageInfo.EndCursor})
	}

	want := len(expected) % 3
	if want == 0 {
		want = 3
	}
	assert.Len(t, res.Items, want)
}

// testExactPageBoundary checks the extra fetched record decides hasNextPage
// when the items divide evenly by the page size.
func (s Suite[T]) testExactPageBoundary(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 6)
	if len(expected) != 6 {
		t.Skip("need exactly 6 items for exact page boundary test")
	}

	page1 := s.list(t, ctx, ListOpts{First: ptr(3)})
	assert.Len(t, page1.Items, 3)
	assert.True(t, page1.PageInfo.HasNextPage)

	page2 := s.list(t, ctx, ListOpts{First: ptr(3), After: *page1.PageInfo.EndCursor})
	assert.Len(t, page2.Items, 3)
	assert.False(t, page2.PageInfo.HasNextPage)

	page3 := s.list(t, ctx, ListOpts{First: ptr(3), After: *page2.PageInfo.EndCursor})
	assert.Empty(t, page3.Items)
	assert.False(t, page3.PageInfo.HasNextPage)
	assert.True(t, page3.PageInfo.HasPreviousPage)
}

func (s Suite[T]) testSingleItem(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 1)
	if len(expected) != 1 {
		t.Skip("need exactly 1 item for single item test")
	}

	res := s.list(t, ctx, ListOpts{First: ptr(10)})
	assert.Len(t, res.Items, 1)
	assert.False(t, res.PageInfo.HasNextPage)
	assert.False(t, res.PageInfo.HasPreviousPage)
	assert.Equal(t, res.PageInfo.StartCursor, res.PageInfo.EndCursor)
}

func (s Suite[T]) testOrderAsc(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 5)

	res := s.list(t, ctx, ListOpts{First: ptr(10)})
	assert.Equal(t, s.ids(expected), s.ids(res.Items))
}

func (s Suite[T]) testOrderDesc(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 5)
	if len(expected) < 4 {
		t.Skip("need at least 4 items for descending order test")
	}

	want := s.ids(expected)
	for i, j := 0, len(want)-1; i < j; i, j = i+1, j-1 {
		want[i], want[j] = want[j], want[i]
	}

	res := s.list(t, ctx, ListOpts{First: ptr(10), Desc: true})
	assert.Equal(t, want, s.ids(res.Items))

	// Descending pages still traverse without gaps.
	page1 := s.list(t, ctx, ListOpts{First: ptr(2), Desc: true})
	page2 := s.list(t, ctx, ListOpts{First: ptr(2), Desc: true, After: *page1.PageInfo.EndCursor})
	assert.Equal(t, want[:4], append(s.ids(page1.Items), s.ids(page2.Items)...))
}

func (s Suite[T]) testDefaultAmount(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 12)

	res := s.list(t, ctx, ListOpts{})
	want := min(len(expected), pagination.DefaultLimit)
	assert.Len(t, res.Items, want)
	assert.Equal(t, len(expected) > want, res.PageInfo.HasNextPage)
}

func (s Suite[T]) testFirstAndLastRejected(t *testing.T) {
	ctx := context.Background()
	s.setup(t, ctx, 2)

	_, err := s.List(ctx, ListOpts{First: ptr(1), Last: ptr(1)})
	assert.ErrorIs(t, err, pagination.ErrFirstAndLast)
}

func (s Suite[T]) testMalformedCursorIgnored(t *testing.T) {
	ctx := context.Background()
	expected := s.setup(t, ctx, 4)

	res := s.list(t, ctx, ListOpts{First: ptr(2), After: "not-a-cursor"})
	assert.Equal(t, s.ids(expected[:min(2, len(expected))]), s.ids(res.Items))
	assert.False(t, res.PageInfo.HasPreviousPage, "ignored cursor does not count as supplied")
}
