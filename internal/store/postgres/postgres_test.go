package postgres

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noobiez16/SubliGraphic/pkg/database"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/store"
)

func setupMock(t *testing.T, limits store.Limits) (pgxmock.PgxPoolIface, store.Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock, limits, database.QueryTracer{}).Scope("alice")
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

func TestGet_Found(t *testing.T) {
	mock, s := setupMock(t, store.DefaultLimits())
	mock.ExpectQuery(q(getSQL)).WithArgs("alice", "cart").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

	v, err := s.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	mock, s := setupMock(t, store.DefaultLimits())
	mock.ExpectQuery(q(getSQL)).WithArgs("alice", "cart").WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "cart")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_DatabaseError(t *testing.T) {
	mock, s := setupMock(t, store.DefaultLimits())
	mock.ExpectQuery(q(getSQL)).WithArgs("alice", "cart").WillReturnError(errors.New("conn closed"))

	_, err := s.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSet_WithinCapacity(t *testing.T) {
	mock, s := setupMock(t, store.Limits{Capacity: 100, MaxValueSize: 50})
	value := []byte("payload")

	mock.ExpectBegin()
	mock.ExpectExec(q(lockSQL)).WithArgs("alice").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(q(usedSQL)).WithArgs("alice", "cart").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(40)))
	mock.ExpectExec(q(putSQL)).WithArgs("alice", "cart", value, int64(11)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Set(context.Background(), "cart", value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_QuotaExceededRollsBack(t *testing.T) {
	mock, s := setupMock(t, store.Limits{Capacity: 100, MaxValueSize: 50})

	mock.ExpectBegin()
	mock.ExpectExec(q(lockSQL)).WithArgs("alice").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(q(usedSQL)).WithArgs("alice", "cart").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(95)))
	mock.ExpectRollback()

	err := s.Set(context.Background(), "cart", []byte("payload"))
	assert.ErrorIs(t, err, apperrors.ErrStorageQuotaExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove(t *testing.T) {
	mock, s := setupMock(t, store.DefaultLimits())
	mock.ExpectExec(q(delSQL)).WithArgs("alice", "custom_design_a").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Remove(context.Background(), "custom_design_a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListKeys(t *testing.T) {
	mock, s := setupMock(t, store.DefaultLimits())
	mock.ExpectQuery(q(listSQL)).WithArgs("alice", "custom_design_").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("custom_design_a").
			AddRow("custom_design_b"))

	keys, err := s.ListKeys(context.Background(), "custom_design_")
	require.NoError(t, err)
	assert.Equal(t, []string{"custom_design_a", "custom_design_b"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations_Embedded(t *testing.T) {
	names, err := fs.Glob(Migrations(), "*.up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_storefront_kv.up.sql"}, names)
}
