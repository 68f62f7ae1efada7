package order

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// RawInput is one caller-supplied ordering entry before normalization.
// Direction and Type are free-form strings; Normalize validates them.
type RawInput struct {
	Field     string
	Direction string
	Type      string
	Meta      bool
}

// Pseudo-fields that order by a meta value, with the meta key given
// separately.
var metaValueFields = map[string]string{
	"meta_value":      "",
	"meta_value_num":  "NUMERIC",
	"meta_value_date": "DATE",
}

// ParseRawInput converts untyped ordering input into RawInputs. Accepted
// shapes:
//
//	"title"                                      one field, default direction
//	"menu_order title"                           several fields
//	{"field": "price", "order": "DESC", "type": "NUMERIC"}
//	{"field": "meta_value_num", "key": "price"}  meta value ordered as a number
//	{"title": "desc"}                            single-entry shorthand
//	[ ...any of the above... ]
func ParseRawInput(v any) ([]RawInput, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case RawInput:
		return []RawInput{x}, nil
	case []RawInput:
		return x, nil
	case string:
		return parseFieldList(x), nil
	case map[string]any:
		in, err := parseMap(x)
		if err != nil {
			return nil, err
		}
		return []RawInput{in}, nil
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return ParseRawInput(m)
	case []map[string]any:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return ParseRawInput(items)
	case []string:
		var out []RawInput
		for _, s := range x {
			out = append(out, parseFieldList(s)...)
		}
		return out, nil
	case []any:
		var out []RawInput
		for i, item := range x {
			parsed, err := ParseRawInput(item)
			if err != nil {
				return nil, fmt.Errorf("orderby[%d]: %w", i, err)
			}
			out = append(out, parsed...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidOrder, v)
}

func parseFieldList(s string) []RawInput {
	var out []RawInput
	for _, name := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		out = append(out, RawInput{Field: name})
	}
	return out
}

func parseMap(m map[string]any) (RawInput, error) {
	if _, ok := m["field"]; !ok {
		return parseShorthand(m)
	}

	var in RawInput
	var err error
	if in.Field, err = cast.ToStringE(m["field"]); err != nil {
		return in, fmt.Errorf("%w: field: %s", ErrInvalidOrder, err)
	}
	for _, name := range []string{"order", "direction"} {
		if d, ok := m[name]; ok {
			if in.Direction, err = cast.ToStringE(d); err != nil {
				return in, fmt.Errorf("%w: %s: %s", ErrInvalidOrder, name, err)
			}
		}
	}
	if t, ok := m["type"]; ok {
		if in.Type, err = cast.ToStringE(t); err != nil {
			return in, fmt.Errorf("%w: type: %s", ErrInvalidOrder, err)
		}
	}
	if meta, ok := m["meta"]; ok {
		if in.Meta, err = cast.ToBoolE(meta); err != nil {
			return in, fmt.Errorf("%w: meta: %s", ErrInvalidOrder, err)
		}
	}

	if typ, ok := metaValueFields[in.Field]; ok {
		key, err := cast.ToStringE(m["key"])
		if err != nil || key == "" {
			return in, fmt.Errorf("%w: %s requires a key", ErrInvalidOrder, in.Field)
		}
		in.Field = key
		in.Meta = true
		if in.Type == "" {
			in.Type = typ
		}
	}
	return in, nil
}

func parseShorthand(m map[string]any) (RawInput, error) {
	if len(m) != 1 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return RawInput{}, fmt.Errorf("%w: expected one field, got %v", ErrAmbiguousOrder, keys)
	}
	for field, dir := range m {
		d, err := cast.ToStringE(dir)
		if err != nil {
			return RawInput{}, fmt.Errorf("%w: direction for %s: %s", ErrInvalidOrder, field, err)
		}
		return RawInput{Field: field, Direction: d}, nil
	}
	return RawInput{}, nil
}
