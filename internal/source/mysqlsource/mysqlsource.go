// Package mysqlsource reads records from MySQL through database/sql and
// go-sql-driver/mysql.
package mysqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/sqlbuilder"
)

type source struct {
	db    *sql.DB
	table sqlbuilder.Table
}

var _ driver.Store = (*source)(nil)

// Open connects to dsn. Times are parsed and stored in UTC.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// NewSource reads the tables described by schema. The source owns db and
// closes it on Close.
func NewSource(db *sql.DB, schema driver.Schema) driver.Store {
	d := sqlbuilder.MySQL
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

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	metaKeys := sqlbuilder.MetaKeys(req.Spec)

	var records []driver.Record
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
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
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: missing id", driver.ErrInvalidRecord)
		}
	}

	stmts := s.statements()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	schema := s.table.Schema
	for _, r := range records {
		args := []any{r.ID}
		for _, c := range schema.Columns {
			args = append(args, r.Fields[c])
		}
		if _, err := tx.ExecContext(ctx, stmts.upsert, args...); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}

		if schema.Meta.Table == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmts.deleteMeta, r.ID); err != nil {
			return fmt.Errorf("delete meta %s: %w", r.ID, err)
		}
		keys := make([]string, 0, len(r.Meta))
		for k := range r.Meta {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, stmts.insertMeta, r.ID, k, metaValue(r.Meta[k])); err != nil {
				return fmt.Errorf("insert meta %s: %w", r.ID, err)
			}
		}
	}

	return tx.Commit()
}

type statements struct {
	upsert     string
	deleteMeta string
	insertMeta string
}

func (s *source) statements() statements {
	schema := s.table.Schema
	q := sqlbuilder.MySQL.Quote

	cols := append([]string{schema.IDColumn}, schema.Columns...)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = q(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	// Updating the id to itself makes the upsert a no-op without columns.
	sets := []string{fmt.Sprintf("%s = %s", q(schema.IDColumn), q(schema.IDColumn))}
	if len(schema.Columns) > 0 {
		sets = sets[:0]
		for _, c := range schema.Columns {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", q(c), q(c)))
		}
	}

	m := schema.Meta
	return statements{
		upsert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			q(schema.Table), strings.Join(quoted, ", "), placeholders, strings.Join(sets, ", ")),
		deleteMeta: fmt.Sprintf("DELETE FROM %s WHERE %s = ?", q(m.Table), q(m.RecordColumn)),
		insertMeta: fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)",
			q(m.Table), q(m.RecordColumn), q(m.KeyColumn), q(m.ValueColumn)),
	}
}

func (s *source) Close() error {
	return s.db.Close()
}

// metaValue stores meta values as text, NULL for nil.
func metaValue(v any) any {
	val := order.ValueOf(v)
	if val.Null {
		return nil
	}
	return val.Raw
}
