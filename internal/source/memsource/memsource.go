package memsource

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/hookdeck/relaycursor/internal/source/driver"
)

// memSource is an in-memory implementation of driver.Store.
// It serves as a reference implementation and is useful for testing.
type memSource struct {
	mu      sync.RWMutex
	records map[string]driver.Record // keyed by record ID
	columns []string                 // allowed native fields; nil allows any
	compare order.Comparator
}

var _ driver.Store = (*memSource)(nil)

type Option func(*memSource)

// WithColumns restricts native fields to the given names, like a table
// schema would.
func WithColumns(columns ...string) Option {
	return func(s *memSource) { s.columns = columns }
}

// WithComparator replaces order.Compare, for example to give Custom keys a
// collation.
func WithComparator(cmp order.Comparator) Option {
	return func(s *memSource) { s.compare = cmp }
}

func NewSource(opts ...Option) driver.Store {
	s := &memSource{
		records: make(map[string]driver.Record),
		compare: order.Compare,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memSource) InsertMany(ctx context.Context, records []driver.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: missing id", driver.ErrInvalidRecord)
		}
		s.records[r.ID] = copyRecord(r)
	}
	return nil
}

func (s *memSource) Close() error { return nil }

func (s *memSource) Fetch(ctx context.Context, req driver.FetchRequest) ([]driver.Record, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []driver.Record
	for _, r := range s.records {
		ok, err := s.matches(r, req)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, r)
		}
	}

	var sortErr error
	slices.SortFunc(matched, func(a, b driver.Record) int {
		c, err := s.compareRecords(a, b, req.Spec)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return nil, sortErr
	}

	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}
	out := make([]driver.Record, len(matched))
	for i, r := range matched {
		out[i] = copyRecord(r)
	}
	return out, nil
}

func (s *memSource) check(req driver.FetchRequest) error {
	if s.columns == nil {
		return req.Filter.Validate()
	}
	schema := driver.Schema{Columns: s.columns}
	return schema.Check(req)
}

func (s *memSource) matches(r driver.Record, req driver.FetchRequest) (bool, error) {
	for _, c := range req.Filter.Conditions {
		ok, err := s.condition(r, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return predicate.Match(req.Predicate, r.Value, s.compare)
}

func (s *memSource) condition(r driver.Record, c driver.Condition) (bool, error) {
	got := r.Value(c.Field)

	if c.Op == driver.OpIn {
		values, err := driver.InValues(c.Value)
		if err != nil {
			return false, err
		}
		for _, v := range values {
			if v.Null {
				return false, fmt.Errorf("%w: NULL in list for %s", driver.ErrInvalidFilter, c.Field)
			}
			cmp, err := s.compare(got, v, c.Type)
			if err != nil {
				return false, err
			}
			if cmp == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	want := order.ValueOf(c.Value)
	if want.Null && c.Op != driver.OpEq && c.Op != driver.OpNeq {
		return false, fmt.Errorf("%w: %s NULL for %s", driver.ErrInvalidFilter, c.Op, c.Field)
	}
	cmp, err := s.compare(got, want, c.Type)
	if err != nil {
		return false, fmt.Errorf("%s: %w", c.Field, err)
	}
	switch c.Op {
	case driver.OpEq:
		return cmp == 0, nil
	case driver.OpNeq:
		return cmp != 0, nil
	case driver.OpGt:
		return cmp > 0, nil
	case driver.OpGte:
		return cmp >= 0, nil
	case driver.OpLt:
		return cmp < 0, nil
	case driver.OpLte:
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("%w: operator %q", driver.ErrInvalidFilter, c.Op)
}

func (s *memSource) compareRecords(a, b driver.Record, spec order.Spec) (int, error) {
	for _, k := range spec {
		c, err := s.compare(a.Value(k.Field), b.Value(k.Field), k.Type)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", k.Field, err)
		}
		if k.Direction == order.Desc {
			c = -c
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

func copyRecord(r driver.Record) driver.Record {
	return driver.Record{
		ID:     r.ID,
		Fields: maps.Clone(r.Fields),
		Meta:   maps.Clone(r.Meta),
	}
}
