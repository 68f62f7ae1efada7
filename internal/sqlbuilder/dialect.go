// Package sqlbuilder renders orderings, cursor predicates and filters as SQL
// for the Postgres, MySQL and ClickHouse sources.
package sqlbuilder

import (
	"fmt"
	"strings"
	"time"

	"github.com/hookdeck/relaycursor/internal/order"
)

// Dialect captures the syntax differences between databases. Every key value
// is compared and sorted through Cast so both sides of a comparison, and the
// ORDER BY, agree on the value type.
type Dialect interface {
	Placeholder(n int) string
	Quote(ident string) string
	Cast(expr string, t order.ValueType) string
	CastArg(placeholder string, t order.ValueType) string
	ArgValue(v order.Value, t order.ValueType) (any, error)
	// OrderTerm sorts NULL below every value: first ascending, last descending.
	OrderTerm(expr string, d order.Direction) string
	False() string
}

var (
	Postgres   Dialect = postgres{}
	MySQL      Dialect = mysql{}
	ClickHouse Dialect = clickhouse{}
)

func argValue(v order.Value, t order.ValueType) (any, error) {
	switch t {
	case order.Numeric:
		d, err := order.ParseNumeric(v.Raw)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	case order.Date:
		return order.ParseDate(v.Raw)
	default:
		return v.Raw, nil
	}
}

type postgres struct{}

func (postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgres) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (postgres) Cast(expr string, t order.ValueType) string {
	switch t {
	case order.String:
		return "CAST(" + expr + " AS TEXT)"
	case order.Numeric:
		return "CAST(" + expr + " AS NUMERIC)"
	case order.Date:
		return "CAST(" + expr + " AS TIMESTAMPTZ)"
	}
	return expr
}

func (p postgres) CastArg(ph string, t order.ValueType) string { return p.Cast(ph, t) }

func (postgres) ArgValue(v order.Value, t order.ValueType) (any, error) { return argValue(v, t) }

func (postgres) OrderTerm(expr string, d order.Direction) string {
	if d == order.Desc {
		return expr + " DESC NULLS LAST"
	}
	return expr + " ASC NULLS FIRST"
}

func (postgres) False() string { return "FALSE" }

type mysql struct{}

func (mysql) Placeholder(int) string { return "?" }

func (mysql) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysql) Cast(expr string, t order.ValueType) string {
	switch t {
	case order.String:
		return "CAST(" + expr + " AS CHAR)"
	case order.Numeric:
		return "CAST(" + expr + " AS DECIMAL(65,10))"
	case order.Date:
		return "CAST(" + expr + " AS DATETIME(6))"
	}
	return expr
}

func (m mysql) CastArg(ph string, t order.ValueType) string { return m.Cast(ph, t) }

func (mysql) ArgValue(v order.Value, t order.ValueType) (any, error) {
	val, err := argValue(v, t)
	if tm, ok := val.(time.Time); ok {
		return tm.UTC(), err
	}
	return val, err
}

// MySQL already sorts NULL first ascending and last descending.
func (mysql) OrderTerm(expr string, d order.Direction) string {
	return expr + " " + d.String()
}

func (mysql) False() string { return "FALSE" }

type clickhouse struct{}

func (clickhouse) Placeholder(int) string { return "?" }

func (clickhouse) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "\\`") + "`"
}

func (clickhouse) Cast(expr string, t order.ValueType) string {
	switch t {
	case order.String:
		return "toString(" + expr + ")"
	case order.Numeric:
		return "toDecimal128OrNull(toString(" + expr + "), 10)"
	case order.Date:
		return "parseDateTime64BestEffortOrNull(toString(" + expr + "), 6, 'UTC')"
	}
	return expr
}

func (clickhouse) CastArg(ph string, t order.ValueType) string {
	switch t {
	case order.Numeric:
		return "toDecimal128(" + ph + ", 10)"
	case order.Date:
		return "parseDateTime64BestEffort(" + ph + ", 6, 'UTC')"
	}
	return ph
}

// Dates are bound as RFC 3339 strings and parsed server side.
func (clickhouse) ArgValue(v order.Value, t order.ValueType) (any, error) {
	val, err := argValue(v, t)
	if err != nil {
		return nil, err
	}
	if tm, ok := val.(time.Time); ok {
		return tm.UTC().Format(time.RFC3339Nano), nil
	}
	return val, nil
}

func (clickhouse) OrderTerm(expr string, d order.Direction) string {
	if d == order.Desc {
		return expr + " DESC NULLS LAST"
	}
	return expr + " ASC NULLS FIRST"
}

func (clickhouse) False() string { return "0" }
