package predicate_test

import (
	"errors"
	"testing"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	r := row{title: order.NewValue("m"), price: order.Null()}

	t.Run("nil matches", func(t *testing.T) {
		ok, err := predicate.Match(nil, r.get, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("null semantics", func(t *testing.T) {
		for _, tc := range []struct {
			p    predicate.Predicate
			want bool
		}{
			{predicate.Compare{Field: title, Op: predicate.Gt, Value: order.Null()}, true},
			{predicate.Compare{Field: title, Op: predicate.Lt, Value: order.Null()}, false},
			{predicate.Compare{Field: price, Op: predicate.Eq, Value: order.Null()}, true},
			{predicate.Compare{Field: price, Op: predicate.Lt, Value: order.NewValue("0"), Type: order.Numeric}, true},
			{predicate.Compare{Field: price, Op: predicate.Gt, Value: order.NewValue("0"), Type: order.Numeric}, false},
		} {
			ok, err := predicate.Match(tc.p, r.get, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok, tc.p.String())
		}
	})

	t.Run("comparator errors propagate", func(t *testing.T) {
		p := predicate.Or{predicate.Compare{Field: title, Op: predicate.Gt, Value: order.NewValue("1"), Type: order.Numeric}}
		_, err := predicate.Match(p, r.get, nil)
		assert.True(t, errors.Is(err, order.ErrInvalidValue))
	})

	t.Run("custom comparator", func(t *testing.T) {
		reverse := func(a, b order.Value, typ order.ValueType) (int, error) {
			c, err := order.Compare(a, b, typ)
			return -c, err
		}
		p := predicate.Compare{Field: title, Op: predicate.Gt, Value: order.NewValue("z"), Type: order.Custom}
		ok, err := predicate.Match(p, r.get, reverse)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestConjoin(t *testing.T) {
	a := predicate.Compare{Field: title, Op: predicate.Gt, Value: order.NewValue("a")}
	b := predicate.Compare{Field: title, Op: predicate.Lt, Value: order.NewValue("z")}

	assert.Nil(t, predicate.Conjoin(nil, nil))
	assert.Equal(t, a, predicate.Conjoin(nil, a))
	assert.Equal(t, predicate.And{a, b}, predicate.Conjoin(a, nil, b))
}
