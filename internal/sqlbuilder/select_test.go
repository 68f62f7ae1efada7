package sqlbuilder_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/sqlbuilder"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(d sqlbuilder.Dialect) sqlbuilder.Table {
	s := driver.DefaultSchema()
	return sqlbuilder.Table{Dialect: d, Schema: s, Meta: sqlbuilder.MetaRows(d, s)}
}

func TestSelectPostgres(t *testing.T) {
	category := order.Field{Name: "category"}
	rank := order.Field{Name: "rank", Meta: true}
	spec := order.Spec{
		{Field: category, Direction: order.Asc},
		{Field: rank, Direction: order.Desc, Type: order.Numeric},
		{Field: order.IDField, Direction: order.Asc},
	}

	q, args, err := table(sqlbuilder.Postgres).Select(driver.FetchRequest{
		Filter: driver.Filter{Conditions: []driver.Condition{
			{Field: category, Op: driver.OpEq, Value: "books"},
		}},
		Spec:  spec,
		Limit: 3,
	})
	require.NoError(t, err)

	meta := func(n int) string {
		return fmt.Sprintf(`(SELECT m."meta_value" FROM "record_meta" m WHERE m."record_id" = r."id" AND m."meta_key" = $%d ORDER BY m."meta_id" LIMIT 1)`, n)
	}
	assert.Equal(t,
		`SELECT r."id", r."title", r."category", r."price", r."published_at", `+meta(1)+` AS "meta_0" `+
			`FROM "records" r `+
			`WHERE CAST(r."category" AS TEXT) = CAST($2 AS TEXT) `+
			`ORDER BY CAST(r."category" AS TEXT) ASC NULLS FIRST, CAST(`+meta(3)+` AS NUMERIC) DESC NULLS LAST, CAST(r."id" AS TEXT) ASC NULLS FIRST `+
			`LIMIT 3`,
		q)
	assert.Equal(t, []any{"rank", "books", "rank"}, args)
}

func TestSelectMySQLWithCursor(t *testing.T) {
	title := order.Field{Name: "title"}
	spec := order.Spec{
		{Field: title, Direction: order.Desc},
		{Field: order.IDField, Direction: order.Desc},
	}
	p, err := predicate.NewBuilder(spec).Build([]order.Value{order.NewValue("m"), order.NewValue("5")}, predicate.After)
	require.NoError(t, err)

	q, args, err := table(sqlbuilder.MySQL).Select(driver.FetchRequest{Spec: spec, Predicate: p, Limit: 11})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT r.`id`, r.`title`, r.`category`, r.`price`, r.`published_at` FROM `records` r "+
			"WHERE ((CAST(r.`title` AS CHAR) IS NULL OR CAST(r.`title` AS CHAR) < CAST(? AS CHAR)) OR "+
			"(CAST(r.`title` AS CHAR) = CAST(? AS CHAR) AND (CAST(r.`id` AS CHAR) IS NULL OR CAST(r.`id` AS CHAR) < CAST(? AS CHAR)))) "+
			"ORDER BY CAST(r.`title` AS CHAR) DESC, CAST(r.`id` AS CHAR) DESC LIMIT 11",
		q)
	assert.Equal(t, []any{"m", "m", "5"}, args)
}

func TestSelectUnknownField(t *testing.T) {
	_, _, err := table(sqlbuilder.Postgres).Select(driver.FetchRequest{
		Spec: order.Spec{{Field: order.Field{Name: "secret"}}, {Field: order.IDField}},
	})
	assert.ErrorIs(t, err, driver.ErrUnknownField)
}

func TestMetaKeys(t *testing.T) {
	spec := order.Spec{
		{Field: order.Field{Name: "a", Meta: true}},
		{Field: order.Field{Name: "title"}},
		{Field: order.Field{Name: "b", Meta: true}},
		{Field: order.Field{Name: "a", Meta: true}, Type: order.Numeric},
		{Field: order.IDField},
	}
	assert.Equal(t, []string{"a", "b"}, sqlbuilder.MetaKeys(spec))
	assert.Nil(t, sqlbuilder.MetaKeys(order.Spec{{Field: order.IDField}}))
}

func TestScanRecord(t *testing.T) {
	tbl := table(sqlbuilder.Postgres)
	published := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	title := "Dune"

	rec, err := tbl.ScanRecord([]any{
		[]byte("rec_1"), &title, nil, decimal.RequireFromString("9.50"), published,
		[]byte("3"), (*string)(nil),
	}, []string{"rank", "missing"})
	require.NoError(t, err)

	assert.Equal(t, "rec_1", rec.ID)
	assert.Equal(t, "Dune", rec.Fields["title"])
	assert.Nil(t, rec.Fields["category"])
	assert.Equal(t, "9.5", rec.Fields["price"])
	assert.Equal(t, published, rec.Fields["published_at"])
	assert.Equal(t, "3", rec.Meta["rank"])
	assert.Nil(t, rec.Meta["missing"])
	assert.True(t, rec.Value(order.Field{Name: "missing", Meta: true}).Null)

	_, err = tbl.ScanRecord([]any{"rec_1"}, nil)
	assert.Error(t, err)
}
