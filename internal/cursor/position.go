package cursor

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hookdeck/relaycursor/internal/order"
)

// Version of the position payload. Version 1 was the bare record ID.
const Version = 2

// legacyPrefix marks cursors in the classic relay "arrayconnection:{id}"
// form, base64 encoded.
const legacyPrefix = "arrayconnection:"

// Position is the decoded content of a cursor: the record it points at and
// that record's values for every key of the ordering it was minted under.
type Position struct {
	ID          string
	Values      []order.Value
	Fingerprint string
}

type payload struct {
	ID          string        `json:"id"`
	Values      []order.Value `json:"v"`
	Fingerprint string        `json:"fp,omitempty"`
}

// NewPosition builds the position of a record under spec, reading each key's
// value with get.
func NewPosition(id string, spec order.Spec, get func(order.Field) order.Value) Position {
	values := make([]order.Value, len(spec))
	for i, k := range spec {
		values[i] = get(k.Field)
	}
	return Position{ID: id, Values: values, Fingerprint: spec.Fingerprint()}
}

func EncodePosition(resource string, p Position) string {
	b, err := json.Marshal(payload{ID: p.ID, Values: p.Values, Fingerprint: p.Fingerprint})
	if err != nil {
		// payload holds only strings.
		panic(err)
	}
	return Encode(resource, Version, string(b))
}

// DecodePosition parses a cursor minted by EncodePosition, or a legacy
// arrayconnection cursor, which yields a position with no values. It never
// panics on arbitrary input.
func DecodePosition(encoded, resource string) (Position, error) {
	if encoded == "" {
		return Position{}, ErrInvalidCursor
	}
	if p, ok := decodeLegacy(encoded); ok {
		return p, nil
	}

	data, err := Decode(encoded, resource, Version)
	if err != nil {
		return Position{}, err
	}
	var pl payload
	if err := json.Unmarshal([]byte(data), &pl); err != nil {
		return Position{}, fmt.Errorf("%w: %s", ErrInvalidCursor, err)
	}
	if pl.ID == "" {
		return Position{}, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}
	return Position{ID: pl.ID, Values: pl.Values, Fingerprint: pl.Fingerprint}, nil
}

func decodeLegacy(encoded string) (Position, bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Position{}, false
	}
	id, ok := strings.CutPrefix(string(raw), legacyPrefix)
	if !ok || id == "" {
		return Position{}, false
	}
	return Position{ID: id}, true
}

// Validate reports whether p can be applied to spec. Legacy positions carry
// no values and only apply to an ID-only ordering.
func (p Position) Validate(spec order.Spec) error {
	if p.Fingerprint == "" && len(p.Values) == 0 {
		if len(spec) == 1 && spec[0].Field == order.IDField {
			return nil
		}
		return fmt.Errorf("%w: legacy cursor needs an id-only ordering", ErrSpecMismatch)
	}
	if len(p.Values) != len(spec) {
		return fmt.Errorf("%w: %d values for %d keys", ErrSpecMismatch, len(p.Values), len(spec))
	}
	if p.Fingerprint != spec.Fingerprint() {
		return ErrSpecMismatch
	}
	return nil
}

// ValuesFor returns the key values of p under spec. Legacy positions are
// expanded from the ID.
func (p Position) ValuesFor(spec order.Spec) []order.Value {
	if len(p.Values) == 0 && len(spec) == 1 {
		return []order.Value{order.NewValue(p.ID)}
	}
	return p.Values
}
