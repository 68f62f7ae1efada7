package driver

import (
	"fmt"
	"slices"

	"github.com/hookdeck/relaycursor/internal/order"
)

// Schema describes where a SQL source finds records and their metadata.
type Schema struct {
	Table    string
	IDColumn string
	Columns  []string
	Meta     MetaSchema
}

// MetaSchema locates metadata. Row-oriented stores keep one row per key in
// Table; ClickHouse keeps a Map column named Column on the record table.
type MetaSchema struct {
	Table        string
	IDColumn     string
	RecordColumn string
	KeyColumn    string
	ValueColumn  string
	Column       string
}

// DefaultSchema matches the tables created by the bundled migrations.
func DefaultSchema() Schema {
	return Schema{
		Table:    "records",
		IDColumn: "id",
		Columns:  []string{"title", "category", "price", "published_at"},
		Meta: MetaSchema{
			Table:        "record_meta",
			IDColumn:     "meta_id",
			RecordColumn: "record_id",
			KeyColumn:    "meta_key",
			ValueColumn:  "meta_value",
			Column:       "meta",
		},
	}
}

func (s Schema) HasColumn(name string) bool {
	return slices.Contains(s.Columns, name)
}

// CheckField rejects native fields that are not columns of the schema.
func (s Schema) CheckField(f order.Field) error {
	if f.Meta || f == order.IDField || s.HasColumn(f.Name) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, f)
}

func (s Schema) Check(req FetchRequest) error {
	for _, k := range req.Spec {
		if err := s.CheckField(k.Field); err != nil {
			return err
		}
	}
	for _, c := range req.Filter.Conditions {
		if err := s.CheckField(c.Field); err != nil {
			return err
		}
	}
	return req.Filter.Validate()
}
