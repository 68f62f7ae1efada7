package predicate

import (
	"fmt"

	"github.com/hookdeck/relaycursor/internal/order"
)

// Match evaluates p against a record whose values are read with get. A nil
// predicate matches everything. NULL compares lower than every value, so
// "x > NULL" holds for any non-NULL x and "x < NULL" never holds.
func Match(p Predicate, get func(order.Field) order.Value, cmp order.Comparator) (bool, error) {
	if cmp == nil {
		cmp = order.Compare
	}
	switch x := p.(type) {
	case nil:
		return true, nil
	case Compare:
		c, err := cmp(get(x.Field), x.Value, x.Type)
		if err != nil {
			return false, fmt.Errorf("%s: %w", x.Field, err)
		}
		switch x.Op {
		case Gt:
			return c > 0, nil
		case Lt:
			return c < 0, nil
		default:
			return c == 0, nil
		}
	case And:
		for _, c := range x {
			ok, err := Match(c, get, cmp)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, c := range x {
			ok, err := Match(c, get, cmp)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported predicate %T", p)
}
