package connection

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/spf13/cast"
)

var ErrInvalidArgument = errors.New("invalid connection argument")

// ParseArgs builds a Request from untyped resolver arguments:
//
//	first, last   integers
//	after, before cursor strings
//	orderby       any input order.ParseRawInput accepts
//	where         {"field": value} for equality, {"field": [v1, v2]} for IN,
//	              {"field": {"gt": v, "type": "NUMERIC"}} for other
//	              operators; prefix a field with "meta." to filter on a
//	              meta value
func ParseArgs(args map[string]any) (Request, error) {
	var req Request
	var err error

	if req.Page.First, err = intArg(args, "first"); err != nil {
		return Request{}, err
	}
	if req.Page.Last, err = intArg(args, "last"); err != nil {
		return Request{}, err
	}
	if req.Page.After, err = stringArg(args, "after"); err != nil {
		return Request{}, err
	}
	if req.Page.Before, err = stringArg(args, "before"); err != nil {
		return Request{}, err
	}

	if req.Order, err = order.ParseRawInput(args["orderby"]); err != nil {
		return Request{}, fmt.Errorf("%w: orderby: %w", ErrInvalidArgument, err)
	}

	if where, ok := args["where"]; ok && where != nil {
		m, ok := where.(map[string]any)
		if !ok {
			return Request{}, fmt.Errorf("%w: where must be an object, got %T", ErrInvalidArgument, where)
		}
		if req.Filter, err = parseWhere(m); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

func intArg(args map[string]any, name string) (*int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidArgument, name)
	}
	return &n, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgument, name)
	}
	return s, nil
}

func parseWhere(m map[string]any) (driver.Filter, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var filter driver.Filter
	for _, key := range keys {
		field := order.Field{Name: key}
		if name, ok := strings.CutPrefix(key, "meta."); ok {
			field = order.Field{Name: name, Meta: true}
		}

		switch v := m[key].(type) {
		case map[string]any:
			typ, err := order.ParseValueType(cast.ToString(v["type"]), order.String)
			if err != nil {
				return driver.Filter{}, fmt.Errorf("%w: where.%s: %w", ErrInvalidArgument, key, err)
			}
			ops := make([]string, 0, len(v))
			for op := range v {
				if op != "type" {
					ops = append(ops, op)
				}
			}
			sort.Strings(ops)
			for _, name := range ops {
				op, err := driver.ParseFilterOp(name)
				if err != nil {
					return driver.Filter{}, fmt.Errorf("%w: where.%s: %w", ErrInvalidArgument, key, err)
				}
				filter.Conditions = append(filter.Conditions, driver.Condition{Field: field, Op: op, Type: typ, Value: v[name]})
			}
		case []any, []string:
			filter.Conditions = append(filter.Conditions, driver.Condition{Field: field, Op: driver.OpIn, Value: v})
		default:
			filter.Conditions = append(filter.Conditions, driver.Condition{Field: field, Op: driver.OpEq, Value: v})
		}
	}
	if err := filter.Validate(); err != nil {
		return driver.Filter{}, fmt.Errorf("%w: where: %w", ErrInvalidArgument, err)
	}
	return filter, nil
}
