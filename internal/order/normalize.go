package order

import (
	"fmt"
	"slices"
)

type normalizeOptions struct {
	defaultDirection Direction
	idType           ValueType
	fieldTypes       map[string]ValueType
	allowed          map[string]bool
	allowMeta        bool
	unique           map[Field]bool
}

type NormalizeOption func(*normalizeOptions)

// WithDefaultDirection sets the direction used for entries that name none.
func WithDefaultDirection(d Direction) NormalizeOption {
	return func(o *normalizeOptions) { o.defaultDirection = d }
}

// WithIDType sets the value type of the appended ID key.
func WithIDType(t ValueType) NormalizeOption {
	return func(o *normalizeOptions) { o.idType = t }
}

// WithFieldTypes declares the value type of native fields. Entries that
// specify a type explicitly keep it.
func WithFieldTypes(types map[string]ValueType) NormalizeOption {
	return func(o *normalizeOptions) {
		if o.fieldTypes == nil {
			o.fieldTypes = map[string]ValueType{}
		}
		for k, v := range types {
			o.fieldTypes[k] = v
		}
	}
}

// WithAllowedFields restricts native fields to the given names. The ID field
// is always allowed.
func WithAllowedFields(names ...string) NormalizeOption {
	return func(o *normalizeOptions) {
		if o.allowed == nil {
			o.allowed = map[string]bool{}
		}
		for _, n := range names {
			o.allowed[n] = true
		}
	}
}

// WithoutMeta rejects meta fields.
func WithoutMeta() NormalizeOption {
	return func(o *normalizeOptions) { o.allowMeta = false }
}

// WithUniqueFields declares native fields that are unique per record. A spec
// ending in one of them gets no ID tie-breaker.
func WithUniqueFields(names ...string) NormalizeOption {
	return func(o *normalizeOptions) {
		if o.unique == nil {
			o.unique = map[Field]bool{}
		}
		for _, n := range names {
			o.unique[Field{Name: n}] = true
		}
	}
}

// Normalize turns caller input into a Spec that totally orders records.
// Empty input falls back to defaults. The result always ends in the ID key
// or a declared unique key, so no two records tie.
func Normalize(raw []RawInput, defaults Spec, opts ...NormalizeOption) (Spec, error) {
	o := normalizeOptions{allowMeta: true}
	for _, opt := range opts {
		opt(&o)
	}

	var spec Spec
	if len(raw) == 0 {
		spec = defaults.Clone()
	} else {
		for _, in := range raw {
			k, err := o.key(in)
			if err != nil {
				return nil, err
			}
			spec = append(spec, k)
		}
	}

	spec = dedupe(spec)

	if i := spec.Index(IDField); i >= 0 {
		// Keys after a unique key cannot change the order.
		return spec[:i+1], nil
	}
	if n := len(spec); n > 0 && o.unique[spec[n-1].Field] {
		return spec, nil
	}

	dir := o.defaultDirection
	if n := len(spec); n > 0 {
		dir = spec[n-1].Direction
	}
	return append(spec, Key{Field: IDField, Direction: dir, Type: o.idType}), nil
}

func (o *normalizeOptions) key(in RawInput) (Key, error) {
	if in.Field == "" {
		return Key{}, fmt.Errorf("%w: empty field", ErrInvalidOrder)
	}
	f := Field{Name: in.Field, Meta: in.Meta}

	if f.Meta && !o.allowMeta {
		return Key{}, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	if !f.Meta && f != IDField && o.allowed != nil && !o.allowed[f.Name] {
		return Key{}, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}

	dir, err := ParseDirection(in.Direction, o.defaultDirection)
	if err != nil {
		return Key{}, err
	}

	def := String
	switch {
	case f == IDField:
		def = o.idType
	case !f.Meta:
		if t, ok := o.fieldTypes[f.Name]; ok {
			def = t
		}
	}
	typ, err := ParseValueType(in.Type, def)
	if err != nil {
		return Key{}, err
	}
	return Key{Field: f, Direction: dir, Type: typ}, nil
}

func dedupe(spec Spec) Spec {
	out := spec[:0:0]
	for _, k := range spec {
		if !slices.ContainsFunc(out, func(e Key) bool { return e.Field == k.Field }) {
			out = append(out, k)
		}
	}
	return out
}
