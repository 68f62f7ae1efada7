// Package chsource reads records from a ClickHouse ReplacingMergeTree table.
// Meta values live in a Map(String, String) column of the record row.
package chsource

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hookdeck/relaycursor/internal/clickhouse"
	"github.com/hookdeck/relaycursor/internal/migrator"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/sqlbuilder"
)

type source struct {
	db    clickhouse.DB
	table sqlbuilder.Table
}

var _ driver.Store = (*source)(nil)

// Schema returns the default schema for the tables of one deployment.
func Schema(deploymentID string) driver.Schema {
	s := driver.DefaultSchema()
	s.Table += migrator.TableSuffix(deploymentID)
	s.Meta = driver.MetaSchema{Column: s.Meta.Column}
	return s
}

// NewSource reads the table described by schema. schema.Meta.Column names
// the map column holding meta values. The source owns db and closes it on
// Close.
func NewSource(db clickhouse.DB, schema driver.Schema) driver.Store {
	d := sqlbuilder.ClickHouse
	return &source{
		db: db,
		table: sqlbuilder.Table{
			Dialect: d,
			Schema:  schema,
			Meta:    mapMeta(d, schema.Meta.Column),
			Final:   true,
		},
	}
}

// mapMeta reads meta values from a map column. Absent keys are NULL rather
// than the map's default empty string.
func mapMeta(d sqlbuilder.Dialect, column string) sqlbuilder.MetaFunc {
	col := "r." + d.Quote(column)
	return func(b *sqlbuilder.Builder, key string) string {
		return fmt.Sprintf("if(mapContains(%s, %s), %s[%s], NULL)", col, b.Arg(key), col, b.Arg(key))
	}
}

func (s *source) Fetch(ctx context.Context, req driver.FetchRequest) ([]driver.Record, error) {
	query, args, err := s.table.Select(req)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	types := rows.ColumnTypes()
	metaKeys := sqlbuilder.MetaKeys(req.Spec)

	var records []driver.Record
	for rows.Next() {
		values := make([]any, len(types))
		for i, ct := range types {
			values[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		rec, err := s.table.ScanRecord(values, metaKeys)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// InsertMany appends records in one batch. Rows with the same id replace
// each other once merged; reads use FINAL so the latest row wins at once.
func (s *source) InsertMany(ctx context.Context, records []driver.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: missing id", driver.ErrInvalidRecord)
		}
	}

	schema := s.table.Schema
	q := sqlbuilder.ClickHouse.Quote
	cols := []string{q(schema.IDColumn)}
	for _, c := range schema.Columns {
		cols = append(cols, q(c))
	}
	convert, err := s.converters(ctx, cols)
	if err != nil {
		return err
	}
	if schema.Meta.Column != "" {
		cols = append(cols, q(schema.Meta.Column))
	}

	batch, err := s.db.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s (%s)", q(schema.Table), strings.Join(cols, ", ")))
	if err != nil {
		return err
	}

	for _, r := range records {
		row := []any{r.ID}
		for i, c := range schema.Columns {
			v, err := convert[i](r.Fields[c])
			if err != nil {
				return fmt.Errorf("%w: %s %s: %w", driver.ErrInvalidRecord, r.ID, c, err)
			}
			row = append(row, v)
		}
		if schema.Meta.Column != "" {
			row = append(row, metaMap(r.Meta))
		}
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("append %s: %w", r.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

type converter func(any) (any, error)

// converters maps each schema column to a converter for its ClickHouse type.
// The first of cols is the id.
func (s *source) converters(ctx context.Context, cols []string) ([]converter, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT %s FROM %s LIMIT 0",
		strings.Join(cols, ", "), sqlbuilder.ClickHouse.Quote(s.table.Schema.Table)))
	if err != nil {
		return nil, fmt.Errorf("describe columns: %w", err)
	}
	defer rows.Close()

	types := rows.ColumnTypes()[1:]
	out := make([]converter, len(types))
	for i, ct := range types {
		out[i] = converterFor(ct.DatabaseTypeName())
	}
	return out, rows.Err()
}

func converterFor(dbType string) converter {
	switch base := strings.TrimSuffix(strings.TrimPrefix(dbType, "Nullable("), ")"); {
	case strings.HasPrefix(base, "Date"):
		return toDate
	case strings.HasPrefix(base, "Float"):
		return toFloat
	case strings.HasPrefix(base, "Decimal"):
		return toDecimal
	default:
		return toString
	}
}

func toString(v any) (any, error) {
	val := order.ValueOf(v)
	if val.Null {
		return (*string)(nil), nil
	}
	return &val.Raw, nil
}

func toFloat(v any) (any, error) {
	val := order.ValueOf(v)
	if val.Null {
		return (*float64)(nil), nil
	}
	d, err := order.ParseNumeric(val.Raw)
	if err != nil {
		return nil, err
	}
	f := d.InexactFloat64()
	return &f, nil
}

func toDecimal(v any) (any, error) {
	val := order.ValueOf(v)
	if val.Null {
		return nil, nil
	}
	return order.ParseNumeric(val.Raw)
}

func toDate(v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		t = t.UTC()
		return &t, nil
	}
	val := order.ValueOf(v)
	if val.Null {
		return (*time.Time)(nil), nil
	}
	t, err := order.ParseDate(val.Raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// metaMap drops NULL values; a missing key reads back as NULL.
func metaMap(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if val := order.ValueOf(v); !val.Null {
			out[k] = val.Raw
		}
	}
	return out
}

func (s *source) Close() error {
	return s.db.Close()
}
