package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/hookdeck/relaycursor/internal/source/driver"
)

// ColumnFunc returns the SQL expression for a field. It may bind arguments
// through b, so it is called once per occurrence of the field.
type ColumnFunc func(b *Builder, f order.Field) (string, error)

// Builder accumulates query arguments in the order their placeholders appear
// in the text, which positional dialects depend on. Render clauses in the
// order they appear in the statement.
type Builder struct {
	dialect Dialect
	column  ColumnFunc
	args    []any
}

func New(d Dialect, column ColumnFunc) *Builder {
	return &Builder{dialect: d, column: column}
}

func (b *Builder) Dialect() Dialect { return b.dialect }

func (b *Builder) Args() []any { return b.args }

// Arg binds v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *Builder) expr(f order.Field, t order.ValueType) (string, error) {
	col, err := b.column(b, f)
	if err != nil {
		return "", err
	}
	return b.dialect.Cast(col, t), nil
}

func (b *Builder) value(v order.Value, t order.ValueType) (string, error) {
	val, err := b.dialect.ArgValue(v, t)
	if err != nil {
		return "", err
	}
	return b.dialect.CastArg(b.Arg(val), t), nil
}

// Where renders p. A nil predicate renders as "".
func (b *Builder) Where(p predicate.Predicate) (string, error) {
	switch x := p.(type) {
	case nil:
		return "", nil
	case predicate.Compare:
		return b.compare(x)
	case predicate.And:
		return b.join(x, " AND ")
	case predicate.Or:
		return b.join(x, " OR ")
	}
	return "", fmt.Errorf("unsupported predicate %T", p)
}

func (b *Builder) join(ps []predicate.Predicate, sep string) (string, error) {
	parts := make([]string, len(ps))
	for i, p := range ps {
		s, err := b.Where(p)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *Builder) compare(c predicate.Compare) (string, error) {
	if c.Value.Null {
		switch c.Op {
		case predicate.Lt:
			return b.dialect.False(), nil
		case predicate.Gt:
			return b.isNull(c.Field, c.Type, true)
		default:
			return b.isNull(c.Field, c.Type, false)
		}
	}

	switch c.Op {
	case predicate.Lt:
		return b.nullOr(c.Field, c.Type, "<", c.Value)
	default:
		return b.binary(c.Field, c.Type, c.Op.String(), c.Value)
	}
}

func (b *Builder) isNull(f order.Field, t order.ValueType, not bool) (string, error) {
	e, err := b.expr(f, t)
	if err != nil {
		return "", err
	}
	if not {
		return e + " IS NOT NULL", nil
	}
	return e + " IS NULL", nil
}

func (b *Builder) binary(f order.Field, t order.ValueType, op string, v order.Value) (string, error) {
	e, err := b.expr(f, t)
	if err != nil {
		return "", err
	}
	val, err := b.value(v, t)
	if err != nil {
		return "", err
	}
	return e + " " + op + " " + val, nil
}

// nullOr renders "(x IS NULL OR x op v)": NULL sorts below every value.
func (b *Builder) nullOr(f order.Field, t order.ValueType, op string, v order.Value) (string, error) {
	isNull, err := b.isNull(f, t, false)
	if err != nil {
		return "", err
	}
	cmp, err := b.binary(f, t, op, v)
	if err != nil {
		return "", err
	}
	return "(" + isNull + " OR " + cmp + ")", nil
}

// Conditions renders a filter as a conjunction. NULL compares as in the
// ordering: lower than everything.
func (b *Builder) Conditions(conds []driver.Condition) (string, error) {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		s, err := b.condition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND "), nil
}

func (b *Builder) condition(c driver.Condition) (string, error) {
	if c.Op == driver.OpIn {
		values, err := driver.InValues(c.Value)
		if err != nil {
			return "", err
		}
		e, err := b.expr(c.Field, c.Type)
		if err != nil {
			return "", err
		}
		phs := make([]string, len(values))
		for i, v := range values {
			if v.Null {
				return "", fmt.Errorf("%w: NULL in list for %s", driver.ErrInvalidFilter, c.Field)
			}
			if phs[i], err = b.value(v, c.Type); err != nil {
				return "", err
			}
		}
		return e + " IN (" + strings.Join(phs, ", ") + ")", nil
	}

	v := order.ValueOf(c.Value)
	if v.Null {
		switch c.Op {
		case driver.OpEq:
			return b.isNull(c.Field, c.Type, false)
		case driver.OpNeq:
			return b.isNull(c.Field, c.Type, true)
		}
		return "", fmt.Errorf("%w: %s NULL for %s", driver.ErrInvalidFilter, c.Op, c.Field)
	}

	switch c.Op {
	case driver.OpEq:
		return b.binary(c.Field, c.Type, "=", v)
	case driver.OpNeq:
		return b.nullOr(c.Field, c.Type, "<>", v)
	case driver.OpGt:
		return b.binary(c.Field, c.Type, ">", v)
	case driver.OpGte:
		return b.binary(c.Field, c.Type, ">=", v)
	case driver.OpLt:
		return b.nullOr(c.Field, c.Type, "<", v)
	case driver.OpLte:
		return b.nullOr(c.Field, c.Type, "<=", v)
	}
	return "", fmt.Errorf("%w: operator %q", driver.ErrInvalidFilter, c.Op)
}

// OrderBy renders the terms of an ORDER BY clause, without the keywords.
func (b *Builder) OrderBy(spec order.Spec) (string, error) {
	terms := make([]string, len(spec))
	for i, k := range spec {
		e, err := b.expr(k.Field, k.Type)
		if err != nil {
			return "", err
		}
		terms[i] = b.dialect.OrderTerm(e, k.Direction)
	}
	return strings.Join(terms, ", "), nil
}

// WhereClause joins non-empty conditions into a WHERE clause, or "".
func WhereClause(conds ...string) string {
	var parts []string
	for _, c := range conds {
		if c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(parts, " AND ")
}
