package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidConfig         = errors.New("invalid config")
	ErrMissingClickHouseAddr = errors.New("clickhouse source requires source.clickhouse.addr")
)

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Source.Driver == "clickhouse" && c.Source.ClickHouse.Addr == "" {
		return ErrMissingClickHouseAddr
	}
	return nil
}
