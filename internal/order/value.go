package order

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/relvacode/iso8601"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

var ErrInvalidValue = errors.New("invalid order value")

// Value is a single key value as carried in a cursor: a raw string, or NULL.
type Value struct {
	Raw  string
	Null bool
}

func NewValue(raw string) Value { return Value{Raw: raw} }

func Null() Value { return Value{Null: true} }

func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	return v.Raw
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Null {
		return []byte("null"), nil
	}
	return json.Marshal(v.Raw)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Null()
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	*v = NewValue(raw)
	return nil
}

// ValueOf converts a value read from a record or scanned from a database row.
// Times are rendered as RFC 3339 in UTC so they parse back as dates.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return NewValue(x)
	case *string:
		if x == nil {
			return Null()
		}
		return NewValue(*x)
	case []byte:
		if x == nil {
			return Null()
		}
		return NewValue(string(x))
	case time.Time:
		return NewValue(x.UTC().Format(time.RFC3339Nano))
	case *time.Time:
		if x == nil {
			return Null()
		}
		return NewValue(x.UTC().Format(time.RFC3339Nano))
	case decimal.Decimal:
		return NewValue(x.String())
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil || dv == nil {
			return Null()
		}
		return ValueOf(dv)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return NewValue(fmt.Sprint(v))
	}
	return NewValue(s)
}

// Compare orders a and b as values of type t. NULL is lower than every
// non-NULL value. Custom values compare as plain strings; callers that need
// another collation supply their own Comparator.
func Compare(a, b Value, t ValueType) (int, error) {
	switch {
	case a.Null && b.Null:
		return 0, nil
	case a.Null:
		return -1, nil
	case b.Null:
		return 1, nil
	}

	switch t {
	case Numeric:
		da, err := ParseNumeric(a.Raw)
		if err != nil {
			return 0, err
		}
		db, err := ParseNumeric(b.Raw)
		if err != nil {
			return 0, err
		}
		return da.Cmp(db), nil
	case Date:
		ta, err := ParseDate(a.Raw)
		if err != nil {
			return 0, err
		}
		tb, err := ParseDate(b.Raw)
		if err != nil {
			return 0, err
		}
		return ta.Compare(tb), nil
	default:
		return strings.Compare(a.Raw, b.Raw), nil
	}
}

// Comparator has the signature of Compare.
type Comparator func(a, b Value, t ValueType) (int, error)

func ParseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not numeric", ErrInvalidValue, s)
	}
	return d, nil
}

const sqlDateTime = "2006-01-02 15:04:05"

// ParseDate accepts ISO 8601 and the SQL "YYYY-MM-DD HH:MM:SS" layout, which
// is read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(sqlDateTime, s); err == nil {
		return t, nil
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrInvalidValue, s)
	}
	return t, nil
}
