package connection_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/hookdeck/relaycursor/internal/config"
	"github.com/hookdeck/relaycursor/internal/connection"
	"github.com/hookdeck/relaycursor/internal/logging"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/pagination"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/source/memsource"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func ptr(n int) *int { return &n }

func ids(page *connection.Page) []string {
	return lo.Map(page.Nodes, func(r driver.Record, _ int) string { return r.ID })
}

// newStore holds five books; b and d share a title.
func newStore(t *testing.T) driver.Store {
	t.Helper()
	store := memsource.NewSource(memsource.WithColumns(driver.DefaultSchema().Columns...))
	require.NoError(t, store.InsertMany(context.Background(), []driver.Record{
		{ID: "a", Fields: map[string]any{"title": "emma", "price": "12"}},
		{ID: "b", Fields: map[string]any{"title": "dune", "price": "9.5"}, Meta: map[string]any{"rank": "2"}},
		{ID: "c", Fields: map[string]any{"title": "beloved", "price": "30"}, Meta: map[string]any{"rank": "10"}},
		{ID: "d", Fields: map[string]any{"title": "dune", "price": "7"}},
		{ID: "e", Fields: map[string]any{"title": "circe"}, Meta: map[string]any{"rank": "1"}},
	}))
	return store
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	r := connection.New(newStore(t), connection.WithResource("book"))

	page, err := r.Resolve(ctx, connection.Request{
		Page:  pagination.PageRequest{First: ptr(2)},
		Order: []order.RawInput{{Field: "title"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "e"}, ids(page))
	assert.True(t, page.PageInfo.HasNextPage)
	assert.False(t, page.PageInfo.HasPreviousPage)

	page, err = r.Resolve(ctx, connection.Request{
		Page:  pagination.PageRequest{First: ptr(2), After: *page.PageInfo.EndCursor},
		Order: []order.RawInput{{Field: "title"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, ids(page), "ties break on id")
	assert.True(t, page.PageInfo.HasNextPage)
	assert.True(t, page.PageInfo.HasPreviousPage)

	back, err := r.Resolve(ctx, connection.Request{
		Page:  pagination.PageRequest{Last: ptr(2), Before: *page.PageInfo.StartCursor},
		Order: []order.RawInput{{Field: "title"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "e"}, ids(back))
	assert.False(t, back.PageInfo.HasPreviousPage)
	assert.True(t, back.PageInfo.HasNextPage)
}

func TestResolveMetaAndFilter(t *testing.T) {
	r := connection.New(newStore(t))

	req, err := connection.ParseArgs(map[string]any{
		"first":   10,
		"orderby": map[string]any{"field": "meta_value_num", "key": "rank", "order": "DESC"},
		"where":   map[string]any{"title": map[string]any{"neq": "emma"}},
	})
	require.NoError(t, err)

	page, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "e", "d"}, ids(page), "missing meta sorts last descending")
}

func TestResolveDefaultOrderFromConfig(t *testing.T) {
	r := connection.New(newStore(t), connection.WithConfig(config.ConnectionConfig{
		Resource:         "book",
		DefaultPageSize:  3,
		MaxPageSize:      4,
		DefaultOrder:     []string{"price"},
		DefaultDirection: "DESC",
	}))

	page, err := r.Resolve(context.Background(), connection.Request{})
	require.NoError(t, err)
	// price is compared as a string without a type.
	assert.Equal(t, []string{"b", "d", "c"}, ids(page))

	page, err = r.Resolve(context.Background(), connection.Request{Page: pagination.PageRequest{First: ptr(50)}})
	require.NoError(t, err)
	assert.Len(t, page.Nodes, 4, "capped at the max page size")
}

func TestResolveInvalidCursor(t *testing.T) {
	ctx := context.Background()

	t.Run("lenient", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		r := connection.New(newStore(t), connection.WithLogger(logging.Wrap(zap.New(core), zap.WarnLevel)))

		page, err := r.Resolve(ctx, connection.Request{
			Page:  pagination.PageRequest{First: ptr(2), After: "garbage"},
			Order: []order.RawInput{{Field: "title"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "e"}, ids(page))
		assert.False(t, page.PageInfo.HasPreviousPage)

		entries := logs.FilterMessage("ignoring invalid cursor").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "after", entries[0].ContextMap()["argument"])
	})

	t.Run("strict", func(t *testing.T) {
		r := connection.New(newStore(t), connection.WithStrictCursors())
		_, err := r.Resolve(ctx, connection.Request{
			Page:  pagination.PageRequest{First: ptr(2), After: "garbage"},
			Order: []order.RawInput{{Field: "title"}},
		})
		assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
	})

	t.Run("other ordering", func(t *testing.T) {
		r := connection.New(newStore(t), connection.WithStrictCursors())
		page, err := r.Resolve(ctx, connection.Request{
			Page:  pagination.PageRequest{First: ptr(1)},
			Order: []order.RawInput{{Field: "title"}},
		})
		require.NoError(t, err)

		_, err = r.Resolve(ctx, connection.Request{
			Page:  pagination.PageRequest{First: ptr(1), After: *page.PageInfo.EndCursor},
			Order: []order.RawInput{{Field: "price", Type: "NUMERIC"}},
		})
		assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
	})
}

func TestResolveErrors(t *testing.T) {
	r := connection.New(newStore(t))
	ctx := context.Background()

	_, err := r.Resolve(ctx, connection.Request{Page: pagination.PageRequest{First: ptr(1), Last: ptr(1)}})
	assert.ErrorIs(t, err, pagination.ErrFirstAndLast)

	_, err = r.Resolve(ctx, connection.Request{Page: pagination.PageRequest{First: ptr(0)}})
	assert.ErrorIs(t, err, pagination.ErrInvalidAmount)

	_, err = r.Resolve(ctx, connection.Request{Order: []order.RawInput{{Field: "secret"}}})
	assert.ErrorIs(t, err, driver.ErrUnknownField)
}

func TestResolveTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	r := connection.New(newStore(t), connection.WithResource("book"))
	_, err := r.Resolve(context.Background(), connection.Request{
		Page:  pagination.PageRequest{Last: ptr(2)},
		Order: []order.RawInput{{Field: "title"}},
	})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "connection.Resolve", span.Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "book", attrs["connection.resource"].AsString())
	assert.Equal(t, "backward", attrs["connection.direction"].AsString())
	assert.Equal(t, int64(2), attrs["connection.edges"].AsInt64())
	assert.True(t, attrs["connection.has_previous_page"].AsBool())
}

func TestResolveMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	ctx := context.Background()

	r := connection.New(newStore(t), connection.WithResource("book"))
	_, err := r.Resolve(ctx, connection.Request{Page: pagination.PageRequest{First: ptr(3), After: "garbage"}})
	require.NoError(t, err)
	_, err = r.Resolve(ctx, connection.Request{Page: pagination.PageRequest{First: ptr(0)}})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	got := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			got[m.Name] = m.Data
		}
	}

	resolutions, ok := got["relaycursor.connection.resolutions"].(metricdata.Sum[int64])
	require.True(t, ok)
	byOutcome := map[string]int64{}
	for _, dp := range resolutions.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		byOutcome[outcome.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"ok": 1, "error": 1}, byOutcome)

	edges, ok := got["relaycursor.connection.edges"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, edges.DataPoints, 1)
	assert.Equal(t, uint64(1), edges.DataPoints[0].Count)
	assert.Equal(t, int64(3), edges.DataPoints[0].Sum)

	invalid, ok := got["relaycursor.connection.invalid_cursors"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, invalid.DataPoints, 1)
	assert.Equal(t, int64(1), invalid.DataPoints[0].Value)
}

// TestResolveWalk pages through random records under random orderings and
// compares the concatenated pages against a single sorted fetch.
func TestResolveWalk(t *testing.T) {
	faker := gofakeit.New(7)
	store := memsource.NewSource(memsource.WithColumns(driver.DefaultSchema().Columns...))
	ctx := context.Background()

	var records []driver.Record
	for i := 0; i < 40; i++ {
		rec := driver.Record{
			ID: fmt.Sprintf("r%02d", i),
			Fields: map[string]any{
				"category": faker.RandomString([]string{"a", "b", "c"}),
				"price":    fmt.Sprint(faker.Number(1, 5)),
			},
		}
		if faker.Bool() {
			rec.Meta = map[string]any{"rank": fmt.Sprint(faker.Number(1, 20))}
		}
		records = append(records, rec)
	}
	require.NoError(t, store.InsertMany(ctx, records))

	orders := [][]order.RawInput{
		{{Field: "category"}, {Field: "price", Type: "NUMERIC", Direction: "DESC"}},
		{{Field: "rank", Meta: true, Type: "NUMERIC"}},
		{{Field: "price", Direction: "DESC"}, {Field: "category", Direction: "DESC"}},
	}
	r := connection.New(store)
	for i, raw := range orders {
		spec, err := r.Spec(raw)
		require.NoError(t, err)
		all, err := store.Fetch(ctx, driver.FetchRequest{Spec: spec})
		require.NoError(t, err)
		want := lo.Map(all, func(r driver.Record, _ int) string { return r.ID })

		for _, size := range []int{1, 3, 7} {
			t.Run(fmt.Sprintf("order%d/size%d", i, size), func(t *testing.T) {
				var got []string
				after := ""
				for {
					page, err := r.Resolve(ctx, connection.Request{
						Page:  pagination.PageRequest{First: ptr(size), After: after},
						Order: raw,
					})
					require.NoError(t, err)
					got = append(got, ids(page)...)
					if !page.PageInfo.HasNextPage {
						break
					}
					after = *page.PageInfo.EndCursor
				}
				assert.Equal(t, want, got)

				got = nil
				before := ""
				for {
					page, err := r.Resolve(ctx, connection.Request{
						Page:  pagination.PageRequest{Last: ptr(size), Before: before},
						Order: raw,
					})
					require.NoError(t, err)
					got = append(ids(page), got...)
					if !page.PageInfo.HasPreviousPage {
						break
					}
					before = *page.PageInfo.StartCursor
				}
				assert.Equal(t, want, got)
			})
		}
	}
}
