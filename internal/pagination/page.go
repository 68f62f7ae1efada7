package pagination

// Edge pairs a node with the cursor pointing at it.
type Edge[T any] struct {
	Node   T
	Cursor string
}

type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     *string
	EndCursor       *string
}

// Page is a resolved connection.
type Page[T any] struct {
	Edges    []Edge[T]
	Nodes    []T
	PageInfo PageInfo
}

// Assemble builds a page from items already in requested order. hasMore
// reports whether the fetch found a record beyond the page in the direction
// of travel.
//
// Moving forward, a next page exists if more records were found or the
// request was bounded by a before cursor; a previous page exists if it
// started from an after cursor. Moving backward the rules mirror.
func Assemble[T any](items []T, plan Plan, hasMore bool, encode func(T) string) *Page[T] {
	page := &Page[T]{
		Edges: make([]Edge[T], len(items)),
		Nodes: make([]T, len(items)),
	}
	for i, item := range items {
		page.Edges[i] = Edge[T]{Node: item, Cursor: encode(item)}
		page.Nodes[i] = item
	}

	if plan.Direction == Backward {
		page.PageInfo.HasPreviousPage = hasMore || plan.HasAfter
		page.PageInfo.HasNextPage = plan.HasBefore
	} else {
		page.PageInfo.HasNextPage = hasMore || plan.HasBefore
		page.PageInfo.HasPreviousPage = plan.HasAfter
	}

	if n := len(page.Edges); n > 0 {
		start, end := page.Edges[0].Cursor, page.Edges[n-1].Cursor
		page.PageInfo.StartCursor = &start
		page.PageInfo.EndCursor = &end
	}
	return page
}
