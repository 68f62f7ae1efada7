package mysqlsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hookdeck/relaycursor/internal/migrator"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"github.com/hookdeck/relaycursor/internal/source/sourcetest"
	"github.com/hookdeck/relaycursor/internal/util/testinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (driver.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSource(db, driver.DefaultSchema()), mock
}

const upsertQuery = "INSERT INTO `records` (`id`, `title`, `category`, `price`, `published_at`) VALUES (?, ?, ?, ?, ?) " +
	"ON DUPLICATE KEY UPDATE `title` = VALUES(`title`), `category` = VALUES(`category`), `price` = VALUES(`price`), `published_at` = VALUES(`published_at`)"

func TestFetch(t *testing.T) {
	store, mock := newMock(t)
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT r.`id`, r.`title`, r.`category`, r.`price`, r.`published_at`, "+
		"(SELECT m.`meta_value` FROM `record_meta` m WHERE m.`record_id` = r.`id` AND m.`meta_key` = ? ORDER BY m.`meta_id` LIMIT 1) AS `meta_0` "+
		"FROM `records` r ORDER BY CAST((SELECT m.`meta_value` FROM `record_meta` m WHERE m.`record_id` = r.`id` AND m.`meta_key` = ? ORDER BY m.`meta_id` LIMIT 1) AS DECIMAL(65,10)) ASC, "+
		"CAST(r.`id` AS CHAR) ASC LIMIT 2").
		WithArgs("rank", "rank").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "category", "price", "published_at", "meta_0"}).
			AddRow([]byte("a"), []byte("dune"), nil, []byte("9.5000000000"), published, []byte("3")).
			AddRow([]byte("b"), nil, []byte("books"), nil, nil, nil))

	records, err := store.Fetch(context.Background(), driver.FetchRequest{
		Spec: order.Spec{
			{Field: order.Field{Name: "rank", Meta: true}, Type: order.Numeric},
			{Field: order.IDField},
		},
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "dune", records[0].Fields["title"])
	assert.Nil(t, records[0].Fields["category"])
	assert.Equal(t, "9.5000000000", records[0].Fields["price"])
	assert.Equal(t, published, records[0].Fields["published_at"])
	assert.Equal(t, "3", records[0].Meta["rank"])

	assert.Equal(t, "b", records[1].ID)
	assert.True(t, records[1].Value(order.Field{Name: "rank", Meta: true}).Null)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchQueryError(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("SELECT r.`id`, r.`title`, r.`category`, r.`price`, r.`published_at` FROM `records` r ORDER BY CAST(r.`id` AS CHAR) ASC").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Fetch(context.Background(), driver.FetchRequest{
		Spec: order.Spec{{Field: order.IDField}},
	})
	assert.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchUnknownField(t *testing.T) {
	store, mock := newMock(t)
	_, err := store.Fetch(context.Background(), driver.FetchRequest{
		Spec: order.Spec{{Field: order.Field{Name: "secret"}}, {Field: order.IDField}},
	})
	assert.ErrorIs(t, err, driver.ErrUnknownField)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMany(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(upsertQuery).
		WithArgs("a", "dune", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM `record_meta` WHERE `record_id` = ?").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `record_meta` (`record_id`, `meta_key`, `meta_value`) VALUES (?, ?, ?)").
		WithArgs("a", "color", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `record_meta` (`record_id`, `meta_key`, `meta_value`) VALUES (?, ?, ?)").
		WithArgs("a", "rank", "3").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := store.InsertMany(context.Background(), []driver.Record{{
		ID:     "a",
		Fields: map[string]any{"title": "dune"},
		Meta:   map[string]any{"rank": "3", "color": nil},
	}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertManyRollsBack(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(upsertQuery).
		WithArgs("a", nil, nil, nil, nil).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := store.InsertMany(context.Background(), []driver.Record{{ID: "a"}})
	assert.ErrorContains(t, err, "deadlock")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertManyMissingID(t *testing.T) {
	store, mock := newMock(t)
	err := store.InsertMany(context.Background(), []driver.Record{{Fields: map[string]any{"title": "x"}}})
	assert.ErrorIs(t, err, driver.ErrInvalidRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen(t *testing.T) {
	db, err := Open("user:pass@tcp(localhost:3306)/records")
	require.NoError(t, err)
	assert.NoError(t, db.Close())

	_, err = Open("not a dsn")
	assert.Error(t, err)
}

func TestConformance(t *testing.T) {
	t.Parallel()

	sourcetest.RunConformanceTests(t, newHarness)
}

type harness struct {
	dsn string
}

func newHarness(_ context.Context, t *testing.T) (sourcetest.Harness, error) {
	t.Helper()
	t.Cleanup(testinfra.Start(t))

	dsn := testinfra.NewMySQLConfig(t)
	m, err := migrator.New(migrator.MigrationOpts{MySQL: migrator.MigrationOptsMySQL{DSN: dsn}})
	require.NoError(t, err)
	_, _, err = m.Up(context.Background(), -1)
	require.NoError(t, err)
	sourceErr, dbErr := m.Close(context.Background())
	require.NoError(t, sourceErr)
	require.NoError(t, dbErr)

	return &harness{dsn: dsn}, nil
}

func (h *harness) MakeSource(ctx context.Context) (driver.Store, error) {
	db, err := Open(h.dsn)
	if err != nil {
		return nil, err
	}
	return NewSource(db, driver.DefaultSchema()), nil
}

func (h *harness) FlushWrites(ctx context.Context) error {
	return nil
}

func (h *harness) Close() {}
