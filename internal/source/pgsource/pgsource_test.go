package pgsource

import (
	"context"
	"testing"

	"github.com/hookdeck/relaycursor/internal/migrator"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/source/sourcetest"
	"github.com/hookdeck/relaycursor/internal/util/testinfra"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	t.Parallel()

	sourcetest.RunConformanceTests(t, newHarness)
}

type harness struct {
	db *pgxpool.Pool
}

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	t.Cleanup(testinfra.Start(t))

	ctx := context.Background()
	url := testinfra.NewPostgresConfig(t)

	m, err := migrator.New(migrator.MigrationOpts{PG: migrator.MigrationOptsPG{URL: url}})
	require.NoError(t, err)
	_, _, err = m.Up(ctx, -1)
	require.NoError(t, err)
	sourceErr, dbErr := m.Close(ctx)
	require.NoError(t, sourceErr)
	require.NoError(t, dbErr)

	db, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	return db
}

func newHarness(_ context.Context, t *testing.T) (sourcetest.Harness, error) {
	t.Helper()
	return &harness{db: setupPostgres(t)}, nil
}

func (h *harness) MakeSource(ctx context.Context) (driver.Store, error) {
	return NewSource(h.db, driver.DefaultSchema()), nil
}

func (h *harness) FlushWrites(ctx context.Context) error {
	return nil
}

func (h *harness) Close() {
	h.db.Close()
}
