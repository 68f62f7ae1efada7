// Package pgsource reads records from Postgres through pgx.
package pgsource

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type source struct {
	db    *pgxpool.Pool
	table sqlbuilder.Table
}

var _ driver.Store = (*source)(nil)

// NewSource reads the tables described by schema. The source owns db and
// closes it on Close.
func NewSource(db *pgxpool.Pool, schema driver.Schema) driver.Store {
	d := sqlbuilder.Postgres
	return &source{
		db:    db,
		table: sqlbuilder.Table{Dialect: d, Schema: schema, Meta: sqlbuilder.MetaRows(d, schema)},
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

	metaKeys := sqlbuilder.MetaKeys(req.Spec)
	var records []driver.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
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

// InsertMany upserts records. A record's meta rows are replaced.
func (s *source) InsertMany(ctx context.Context, records []driver.Record) error {
	if len(records) == 0 {
		return nil
	}

	schema := s.table.Schema
	q := sqlbuilder.Postgres.Quote
	cols := append([]string{schema.IDColumn}, schema.Columns...)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = q(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	upsert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO ",
		q(schema.Table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), q(schema.IDColumn))
	if len(schema.Columns) == 0 {
		upsert += "NOTHING"
	} else {
		sets := make([]string, len(schema.Columns))
		for i, c := range schema.Columns {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", q(c), q(c))
		}
		upsert += "UPDATE SET " + strings.Join(sets, ", ")
	}

	m := schema.Meta
	deleteMeta := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", q(m.Table), q(m.RecordColumn))
	insertMeta := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)",
		q(m.Table), q(m.RecordColumn), q(m.KeyColumn), q(m.ValueColumn))

	batch := &pgx.Batch{}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: missing id", driver.ErrInvalidRecord)
		}
		args := []any{r.ID}
		for _, c := range schema.Columns {
			args = append(args, r.Fields[c])
		}
		batch.Queue(upsert, args...)

		if m.Table == "" {
			continue
		}
		batch.Queue(deleteMeta, r.ID)
		keys := make([]string, 0, len(r.Meta))
		for k := range r.Meta {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			batch.Queue(insertMeta, r.ID, k, metaValue(r.Meta[k]))
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *source) Close() error {
	s.db.Close()
	return nil
}

// metaValue stores meta values as text, NULL for nil.
func metaValue(v any) any {
	val := order.ValueOf(v)
	if val.Null {
		return nil
	}
	return val.Raw
}
