// Package cursor encodes connection positions into opaque cursor strings.
//
// A cursor is a versioned, resource-scoped envelope "{resource}v{NN}:{data}"
// rendered in base62, so it is URL safe and distinct per connection type.
package cursor

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrInvalidCursor indicates the cursor is malformed or cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrVersionMismatch indicates the cursor was minted by another format version.
	ErrVersionMismatch = errors.New("cursor version mismatch")

	// ErrSpecMismatch indicates the cursor was minted under a different ordering.
	ErrSpecMismatch = errors.New("cursor does not match ordering")
)

func Base62Encode(s string) string {
	if s == "" {
		return ""
	}
	return new(big.Int).SetBytes([]byte(s)).Text(62)
}

func Base62Decode(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	num, ok := new(big.Int).SetString(s, 62)
	if !ok {
		return "", ErrInvalidCursor
	}
	return string(num.Bytes()), nil
}

// Encode wraps data in a versioned envelope for resource.
func Encode(resource string, version int, data string) string {
	return Base62Encode(prefix(resource, version) + data)
}

// Decode returns the data of an envelope minted for resource at version.
// An empty cursor decodes to empty data.
func Decode(encoded string, resource string, version int) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := Base62Decode(encoded)
	if err != nil {
		return "", err
	}

	want := prefix(resource, version)
	if data, ok := strings.CutPrefix(raw, want); ok {
		return data, nil
	}
	if strings.HasPrefix(raw, resource+"v") {
		return "", fmt.Errorf("%w: expected version %02d", ErrVersionMismatch, version)
	}
	return "", ErrInvalidCursor
}

func prefix(resource string, version int) string {
	return fmt.Sprintf("%sv%02d:", resource, version)
}
