package config

import (
	"github.com/hookdeck/relaycursor/internal/clickhouse"
	"github.com/hookdeck/relaycursor/internal/migrator"
	"github.com/hookdeck/relaycursor/internal/source/driver"
)

func (c *ClickHouseConfig) ToConfig() *clickhouse.ClickHouseConfig {
	return &clickhouse.ClickHouseConfig{
		Addr:       c.Addr,
		Username:   c.Username,
		Password:   c.Password,
		Database:   c.Database,
		TLSEnabled: c.TLSEnabled,
	}
}

// Schema returns the table layout SQL sources read from.
func (t TableConfig) Schema() driver.Schema {
	return driver.Schema{
		Table:    t.Name,
		IDColumn: t.IDColumn,
		Columns:  t.Columns,
		Meta: driver.MetaSchema{
			Table:        t.MetaTable,
			IDColumn:     t.MetaIDColumn,
			RecordColumn: t.MetaRecord,
			KeyColumn:    t.MetaKey,
			ValueColumn:  t.MetaValue,
			Column:       t.MetaColumn,
		},
	}
}

// ToMigratorOpts returns the migration options for the configured SQL
// driver. The memory driver has nothing to migrate.
func (c *Config) ToMigratorOpts() (migrator.MigrationOpts, bool) {
	switch c.Source.Driver {
	case "postgres":
		return migrator.MigrationOpts{PG: migrator.MigrationOptsPG{URL: c.Source.PostgresURL}}, true
	case "mysql":
		return migrator.MigrationOpts{MySQL: migrator.MigrationOptsMySQL{DSN: c.Source.MySQLDSN}}, true
	case "clickhouse":
		ch := c.Source.ClickHouse
		return migrator.MigrationOpts{CH: migrator.MigrationOptsCH{
			Addr:         ch.Addr,
			Username:     ch.Username,
			Password:     ch.Password,
			Database:     ch.Database,
			DeploymentID: ch.DeploymentID,
		}}, true
	}
	return migrator.MigrationOpts{}, false
}
