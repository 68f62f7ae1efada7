// Package order models the ordering of a connection: which fields records are
// sorted by, in which direction, and how their values compare.
package order

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

var (
	ErrUnknownField   = errors.New("unknown order field")
	ErrInvalidOrder   = errors.New("invalid order input")
	ErrAmbiguousOrder = errors.New("ambiguous order input")
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) Invert() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// ParseDirection parses "asc"/"desc" case-insensitively. An empty string
// returns def.
func ParseDirection(s string, def Direction) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	}
	return def, fmt.Errorf("%w: direction %q", ErrInvalidOrder, s)
}

// ValueType selects how two values of a key are compared.
type ValueType int

const (
	String ValueType = iota
	Numeric
	Date
	Custom
)

func (t ValueType) String() string {
	switch t {
	case Numeric:
		return "NUMERIC"
	case Date:
		return "DATE"
	case Custom:
		return "CUSTOM"
	default:
		return "STRING"
	}
}

// ParseValueType accepts the canonical type names and the MySQL cast names
// commonly used for meta queries (CHAR, SIGNED, DECIMAL, DATETIME, ...).
func ParseValueType(s string, def ValueType) (ValueType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "STRING", "CHAR", "BINARY":
		return String, nil
	case "NUMERIC", "SIGNED", "UNSIGNED", "DECIMAL":
		return Numeric, nil
	case "DATE", "DATETIME", "TIME":
		return Date, nil
	case "CUSTOM":
		return Custom, nil
	}
	return def, fmt.Errorf("%w: type %q", ErrInvalidOrder, s)
}

// Field names a sortable value. Meta fields are looked up in the record's
// externally joined metadata instead of its own columns.
type Field struct {
	Name string
	Meta bool
}

// IDField is the logical record identifier. Sources map it to their own
// primary key column.
var IDField = Field{Name: "id"}

func (f Field) String() string {
	if f.Meta {
		return "meta:" + f.Name
	}
	return f.Name
}

type Key struct {
	Field     Field
	Direction Direction
	Type      ValueType
}

func (k Key) Invert() Key {
	k.Direction = k.Direction.Invert()
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s %s", k.Field, k.Direction, k.Type)
}

// Spec is an ordered list of keys, most significant first. A normalized Spec
// always ends in a key that is unique per record.
type Spec []Key

func (s Spec) Index(f Field) int {
	for i, k := range s {
		if k.Field == f {
			return i
		}
	}
	return -1
}

func (s Spec) Invert() Spec {
	out := make(Spec, len(s))
	for i, k := range s {
		out[i] = k.Invert()
	}
	return out
}

func (s Spec) Fields() []Field {
	out := make([]Field, len(s))
	for i, k := range s {
		out[i] = k.Field
	}
	return out
}

func (s Spec) Clone() Spec {
	if s == nil {
		return nil
	}
	out := make(Spec, len(s))
	copy(out, s)
	return out
}

func (s Spec) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// Fingerprint returns a short stable hash of the spec. Cursors carry it so a
// cursor minted under one ordering is not applied to another.
func (s Spec) Fingerprint() string {
	h, err := hashstructure.Hash(s, hashstructure.FormatV2, nil)
	if err != nil {
		// Spec only holds strings, bools and ints; hashing cannot fail.
		panic(err)
	}
	return strconv.FormatUint(h, 36)
}
