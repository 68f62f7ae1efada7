// Package source opens the configured driver.Store.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hookdeck/relaycursor/internal/clickhouse"
	"github.com/hookdeck/relaycursor/internal/config"
	"github.com/hookdeck/relaycursor/internal/migrator"
	"github.com/hookdeck/relaycursor/internal/source/chsource"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/source/memsource"
	"github.com/hookdeck/relaycursor/internal/source/mysqlsource"
	"github.com/hookdeck/relaycursor/internal/source/pgsource"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Record = driver.Record
type FetchRequest = driver.FetchRequest
type Filter = driver.Filter
type Condition = driver.Condition
type Schema = driver.Schema
type Store = driver.Store

// DriverOpts holds the open connection of at most one SQL driver. With none
// set, NewSource returns an in-memory store.
type DriverOpts struct {
	CH           clickhouse.DB
	PG           *pgxpool.Pool
	MySQL        *sql.DB
	DeploymentID string
	Schema       driver.Schema
}

// Close closes the connection. Stores returned by NewSource own it, so only
// call Close when no store was made.
func (d *DriverOpts) Close() error {
	if d.CH != nil {
		return d.CH.Close()
	}
	if d.MySQL != nil {
		return d.MySQL.Close()
	}
	if d.PG != nil {
		d.PG.Close()
	}
	return nil
}

func NewSource(ctx context.Context, driverOpts DriverOpts) (driver.Store, error) {
	schema := driverOpts.Schema
	if schema.Table == "" {
		schema = driver.DefaultSchema()
	}

	switch {
	case driverOpts.CH != nil:
		schema.Table += migrator.TableSuffix(driverOpts.DeploymentID)
		schema.Meta = driver.MetaSchema{Column: schema.Meta.Column}
		return chsource.NewSource(driverOpts.CH, schema), nil
	case driverOpts.PG != nil:
		return pgsource.NewSource(driverOpts.PG, schema), nil
	case driverOpts.MySQL != nil:
		return mysqlsource.NewSource(driverOpts.MySQL, schema), nil
	}
	return memsource.NewSource(memsource.WithColumns(schema.Columns...)), nil
}

// NewMemSource returns an in-memory store with the default columns.
func NewMemSource() driver.Store {
	return memsource.NewSource(memsource.WithColumns(driver.DefaultSchema().Columns...))
}

type Config struct {
	ClickHouse   *clickhouse.ClickHouseConfig
	Postgres     string
	MySQL        string
	DeploymentID string
	Schema       driver.Schema
}

// ConfigFrom selects the connection settings of the configured driver.
func ConfigFrom(c *config.Config) Config {
	cfg := Config{Schema: c.Source.Table.Schema()}
	switch c.Source.Driver {
	case "postgres":
		cfg.Postgres = c.Source.PostgresURL
	case "mysql":
		cfg.MySQL = c.Source.MySQLDSN
	case "clickhouse":
		cfg.ClickHouse = c.Source.ClickHouse.ToConfig()
		cfg.DeploymentID = c.Source.ClickHouse.DeploymentID
	}
	return cfg
}

// MakeDriverOpts opens the connection cfg describes. Setting more than one
// driver is an error.
func MakeDriverOpts(ctx context.Context, cfg Config) (DriverOpts, error) {
	driverOpts := DriverOpts{
		DeploymentID: cfg.DeploymentID,
		Schema:       cfg.Schema,
	}

	n := 0
	if cfg.ClickHouse != nil {
		n++
	}
	if cfg.Postgres != "" {
		n++
	}
	if cfg.MySQL != "" {
		n++
	}
	if n > 1 {
		return DriverOpts{}, errors.New("source: more than one driver configured")
	}

	switch {
	case cfg.ClickHouse != nil:
		chDB, err := clickhouse.New(cfg.ClickHouse)
		if err != nil {
			return DriverOpts{}, fmt.Errorf("open clickhouse: %w", err)
		}
		driverOpts.CH = chDB
	case cfg.Postgres != "":
		pgDB, err := pgxpool.New(ctx, cfg.Postgres)
		if err != nil {
			return DriverOpts{}, fmt.Errorf("open postgres: %w", err)
		}
		driverOpts.PG = pgDB
	case cfg.MySQL != "":
		db, err := mysqlsource.Open(cfg.MySQL)
		if err != nil {
			return DriverOpts{}, fmt.Errorf("open mysql: %w", err)
		}
		driverOpts.MySQL = db
	}
	return driverOpts, nil
}
