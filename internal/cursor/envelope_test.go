package cursor_test

import (
	"errors"
	"testing"

	"github.com/hookdeck/relaycursor/internal/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase62(t *testing.T) {
	t.Run("encodes with 0-9a-zA-Z alphabet", func(t *testing.T) {
		encoded := cursor.Base62Encode("the quick brown fox jumps over the lazy dog")
		assert.Equal(t, "b6QPtm6Z5XFM81QySyltRRVYvv0ELEGBENK9XUgI4iciqMTErk0ea0kd2n", encoded)
	})

	t.Run("empty string round-trips as empty", func(t *testing.T) {
		assert.Empty(t, cursor.Base62Encode(""))
		decoded, err := cursor.Base62Decode("")
		require.NoError(t, err)
		assert.Empty(t, decoded)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := cursor.Base62Decode("!!!invalid!!!")
		assert.True(t, errors.Is(err, cursor.ErrInvalidCursor))
	})

	for _, tc := range []string{"simple", "with:colons", `{"id":"1","v":[null]}`, "unicode-émoji-🎉"} {
		t.Run("round-trip "+tc, func(t *testing.T) {
			decoded, err := cursor.Base62Decode(cursor.Base62Encode(tc))
			require.NoError(t, err)
			assert.Equal(t, tc, decoded)
		})
	}
}

func TestEnvelope(t *testing.T) {
	t.Run("round-trip", func(t *testing.T) {
		encoded := cursor.Encode("post", 2, "data:with:colons")
		assert.NotContains(t, encoded, ":")
		data, err := cursor.Decode(encoded, "post", 2)
		require.NoError(t, err)
		assert.Equal(t, "data:with:colons", data)
	})

	t.Run("empty decodes to empty", func(t *testing.T) {
		data, err := cursor.Decode("", "post", 2)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("resource scoped", func(t *testing.T) {
		assert.NotEqual(t, cursor.Encode("post", 2, "x"), cursor.Encode("user", 2, "x"))
		_, err := cursor.Decode(cursor.Encode("post", 2, "x"), "user", 2)
		assert.True(t, errors.Is(err, cursor.ErrInvalidCursor))
	})

	t.Run("version mismatch names expected version", func(t *testing.T) {
		_, err := cursor.Decode(cursor.Encode("post", 1, "x"), "post", 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, cursor.ErrVersionMismatch))
		assert.Contains(t, err.Error(), "05")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := cursor.Decode(cursor.Base62Encode("garbage"), "post", 2)
		assert.True(t, errors.Is(err, cursor.ErrInvalidCursor))
	})
}
