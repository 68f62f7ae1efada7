package sqlbuilder

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/hookdeck/relaycursor/internal/order"
	sourcedriver "github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/spf13/cast"
)

const tableAlias = "r"

// MetaFunc returns the expression for the value of one meta key of the row
// aliased "r", or SQL NULL when the row lacks the key.
type MetaFunc func(b *Builder, key string) string

// Table renders fetch queries for one record table.
type Table struct {
	Dialect Dialect
	Schema  sourcedriver.Schema
	Meta    MetaFunc
	// Final reads merged rows only (ClickHouse FINAL).
	Final bool
}

// MetaRows reads meta values from a key/value table, one row per key. The
// first row by meta id wins when a key repeats.
func MetaRows(d Dialect, s sourcedriver.Schema) MetaFunc {
	m := s.Meta
	return func(b *Builder, key string) string {
		return fmt.Sprintf("(SELECT m.%s FROM %s m WHERE m.%s = %s.%s AND m.%s = %s ORDER BY m.%s LIMIT 1)",
			d.Quote(m.ValueColumn), d.Quote(m.Table),
			d.Quote(m.RecordColumn), tableAlias, d.Quote(s.IDColumn),
			d.Quote(m.KeyColumn), b.Arg(key),
			d.Quote(m.IDColumn))
	}
}

func (t Table) column(b *Builder, f order.Field) (string, error) {
	switch {
	case f.Meta:
		return t.Meta(b, f.Name), nil
	case f == order.IDField:
		return tableAlias + "." + t.Dialect.Quote(t.Schema.IDColumn), nil
	case t.Schema.HasColumn(f.Name):
		return tableAlias + "." + t.Dialect.Quote(f.Name), nil
	}
	return "", fmt.Errorf("%w: %s", sourcedriver.ErrUnknownField, f)
}

// MetaKeys returns the meta keys a fetch must select so that every ordering
// key can be read back from the records.
func MetaKeys(spec order.Spec) []string {
	var keys []string
	for _, k := range spec {
		if k.Field.Meta && !slices.Contains(keys, k.Field.Name) {
			keys = append(keys, k.Field.Name)
		}
	}
	return keys
}

// Select renders the query for req. Its columns are the id, the schema
// columns, then the values of MetaKeys(req.Spec).
func (t Table) Select(req sourcedriver.FetchRequest) (string, []any, error) {
	if err := t.Schema.Check(req); err != nil {
		return "", nil, err
	}
	d := t.Dialect
	b := New(d, t.column)

	cols := []string{tableAlias + "." + d.Quote(t.Schema.IDColumn)}
	for _, c := range t.Schema.Columns {
		cols = append(cols, tableAlias+"."+d.Quote(c))
	}
	for i, key := range MetaKeys(req.Spec) {
		cols = append(cols, fmt.Sprintf("%s AS %s", t.Meta(b, key), d.Quote(fmt.Sprintf("meta_%d", i))))
	}

	filter, err := b.Conditions(req.Filter.Conditions)
	if err != nil {
		return "", nil, err
	}
	cursor, err := b.Where(req.Predicate)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := b.OrderBy(req.Spec)
	if err != nil {
		return "", nil, err
	}

	var q strings.Builder
	q.WriteString("SELECT ")
	q.WriteString(strings.Join(cols, ", "))
	q.WriteString(" FROM ")
	q.WriteString(d.Quote(t.Schema.Table))
	q.WriteString(" " + tableAlias)
	if t.Final {
		q.WriteString(" FINAL")
	}
	q.WriteString(WhereClause(filter, cursor))
	if orderBy != "" {
		q.WriteString(" ORDER BY " + orderBy)
	}
	if req.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", req.Limit)
	}
	return q.String(), b.Args(), nil
}

// ScanRecord builds a record from a row selected by Select.
func (t Table) ScanRecord(values []any, metaKeys []string) (sourcedriver.Record, error) {
	want := 1 + len(t.Schema.Columns) + len(metaKeys)
	if len(values) != want {
		return sourcedriver.Record{}, fmt.Errorf("scan: got %d columns, want %d", len(values), want)
	}

	id, err := cast.ToStringE(plain(values[0]))
	if err != nil {
		return sourcedriver.Record{}, fmt.Errorf("scan id: %w", err)
	}
	rec := sourcedriver.Record{
		ID:     id,
		Fields: make(map[string]any, len(t.Schema.Columns)),
	}
	for i, c := range t.Schema.Columns {
		rec.Fields[c] = plain(values[1+i])
	}
	if len(metaKeys) > 0 {
		rec.Meta = make(map[string]any, len(metaKeys))
		for i, key := range metaKeys {
			rec.Meta[key] = plain(values[1+len(t.Schema.Columns)+i])
		}
	}
	return rec, nil
}

// plain unwraps pointers and driver types into Go values.
func plain(v any) any {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return plain(rv.Elem().Interface())
	}
	switch x := v.(type) {
	case []byte:
		return string(x)
	case driver.Valuer:
		if val, err := x.Value(); err == nil {
			return plain(val)
		}
	}
	return v
}
