// Package migrator applies the bundled record table migrations to Postgres,
// MySQL and ClickHouse.
package migrator

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/clickhouse"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql
var pgMigrations embed.FS

//go:embed migrations/mysql/*.sql
var mysqlMigrations embed.FS

//go:embed migrations/clickhouse/*.sql
var chMigrations embed.FS

type Migrator struct {
	migrate *migrate.Migrate
}

func New(opts MigrationOpts) (*Migrator, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid migration opts: %w", err)
	}

	d, err := opts.getDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to get migration driver: %w", err)
	}

	dbURL, err := opts.databaseURL()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, dbURL)
	if err != nil {
		// golang-migrate echoes the URL, credentials included.
		return nil, sanitizeConnectionError(err, dbURL)
	}

	return &Migrator{
		migrate: m,
	}, nil
}

func (m *Migrator) Version(ctx context.Context) (int, error) {
	version, _, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("migrate.Version: %w", err)
	}
	return int(version), nil
}

// Up migrates the database up by n migrations, or all of them when n < 0.
// It returns the updated version and the number of migrations applied.
func (m *Migrator) Up(ctx context.Context, n int) (int, int, error) {
	initVersion, err := m.Version(ctx)
	if err != nil {
		return 0, 0, err
	}

	if n < 0 {
		if err := m.migrate.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return initVersion, 0, nil
			}
			return initVersion, 0, fmt.Errorf("migrate.Up: %w", err)
		}
	} else {
		if err := m.migrate.Steps(n); err != nil {
			return initVersion, 0, fmt.Errorf("migrate.Steps: %w", err)
		}
	}

	version, err := m.Version(ctx)
	if err != nil {
		return initVersion, 0, fmt.Errorf("reading version after migration: %w", err)
	}

	return version, version - initVersion, nil
}

// Down rolls back n migrations, or all of them when n <= 0. It returns the
// updated version and the number of migrations rolled back.
func (m *Migrator) Down(ctx context.Context, n int) (int, int, error) {
	initVersion, err := m.Version(ctx)
	if err != nil {
		return 0, 0, err
	}

	if n > 0 {
		if n > initVersion {
			return initVersion, 0, fmt.Errorf("cannot rollback more migrations than current version; current version: %d, n: %d", initVersion, n)
		}
		if err := m.migrate.Steps(-n); err != nil {
			return initVersion, 0, fmt.Errorf("migrate.Steps: %w", err)
		}
	} else {
		if err := m.migrate.Down(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return initVersion, 0, nil
			}
			return initVersion, 0, fmt.Errorf("migrate.Down: %w", err)
		}
	}

	version, err := m.Version(ctx)
	if err != nil {
		return initVersion, 0, fmt.Errorf("reading version after migration: %w", err)
	}

	return version, initVersion - version, nil
}

func (m *Migrator) Force(ctx context.Context, version int) error {
	return m.migrate.Force(version)
}

// Close returns the source and database close errors.
func (m *Migrator) Close(ctx context.Context) (error, error) {
	return m.migrate.Close()
}

type MigrationOptsPG struct {
	URL string
}

type MigrationOptsMySQL struct {
	DSN string
}

type MigrationOptsCH struct {
	Addr         string
	Username     string
	Password     string
	Database     string
	DeploymentID string
}

// MigrationOpts selects the database to migrate. Exactly one of PG, MySQL
// and CH is set.
type MigrationOpts struct {
	PG    MigrationOptsPG
	MySQL MigrationOptsMySQL
	CH    MigrationOptsCH
}

func (opts *MigrationOpts) validate() error {
	set := 0
	if opts.PG.URL != "" {
		set++
	}
	if opts.MySQL.DSN != "" {
		set++
	}
	if opts.CH.Addr != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one database must be configured, got %d", set)
	}
	return nil
}

func (opts *MigrationOpts) getDriver() (source.Driver, error) {
	switch {
	case opts.PG.URL != "":
		d, err := iofs.New(pgMigrations, "migrations/postgres")
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres migration source: %w", err)
		}
		return d, nil
	case opts.MySQL.DSN != "":
		d, err := iofs.New(mysqlMigrations, "migrations/mysql")
		if err != nil {
			return nil, fmt.Errorf("failed to create mysql migration source: %w", err)
		}
		return d, nil
	case opts.CH.Addr != "":
		d, err := newDeploymentSource(chMigrations, "migrations/clickhouse", opts.CH.DeploymentID)
		if err != nil {
			return nil, fmt.Errorf("failed to create clickhouse migration source: %w", err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("no migration source available")
}

func (opts *MigrationOpts) databaseURL() (string, error) {
	switch {
	case opts.PG.URL != "":
		return opts.PG.URL, nil
	case opts.MySQL.DSN != "":
		cfg, err := mysql.ParseDSN(opts.MySQL.DSN)
		if err != nil {
			return "", sanitizeConnectionError(err, opts.MySQL.DSN)
		}
		cfg.MultiStatements = true
		cfg.ParseTime = true
		return "mysql://" + cfg.FormatDSN(), nil
	case opts.CH.Addr != "":
		return fmt.Sprintf("clickhouse://%s:%s@%s/%s?x-multi-statement=true&x-migrations-table=schema_migrations%s",
			opts.CH.Username, opts.CH.Password, opts.CH.Addr, opts.CH.Database, TableSuffix(opts.CH.DeploymentID)), nil
	}
	return "", nil
}
