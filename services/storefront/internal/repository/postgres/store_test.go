package postgres

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsync/pkg/database"
	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/pkg/logger"
	"github.com/utafrali/shopsync/services/storefront/internal/repository"
)

var (
	_ repository.Store  = (*Store)(nil)
	_ repository.Pinger = (*Store)(nil)
)

func newStoreTestFixture(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock, "storefront"), mock
}

func TestStore_Get_Success(t *testing.T) {
	s, mock := newStoreTestFixture(t)

	mock.ExpectQuery("SELECT value FROM local_storage").
		WithArgs("storefront", "cart").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

	got, err := s.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	s, mock := newStoreTestFixture(t)

	mock.ExpectQuery("SELECT value FROM local_storage").
		WithArgs("storefront", "cart").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "cart")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_QueryError(t *testing.T) {
	s, mock := newStoreTestFixture(t)

	mock.ExpectQuery("SELECT value FROM local_storage").
		WithArgs("storefront", "cart").
		WillReturnError(errors.New("connection refused"))

	_, err := s.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get storage key cart")
}

func TestStore_Set_Upserts(t *testing.T) {
	s, mock := newStoreTestFixture(t)

	mock.ExpectExec("INSERT INTO local_storage").
		WithArgs("storefront", "wishlistIds", []byte(`["p1"]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Set(context.Background(), "wishlistIds", []byte(`["p1"]`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Set_Error(t *testing.T) {
	s, mock := newStoreTestFixture(t)

	mock.ExpectExec("INSERT INTO local_storage").
		WithArgs("storefront", "cart", []byte(`[]`)).
		WillReturnError(errors.New("disk full"))

	err := s.Set(context.Background(), "cart", []byte(`[]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set storage key cart")
}

func TestStore_Delete(t *testing.T) {
	s, mock := newStoreTestFixture(t)

	mock.ExpectExec("DELETE FROM local_storage").
		WithArgs("storefront", "wishlist").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Delete(context.Background(), "wishlist"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	s, _ := newStoreTestFixture(t)

	assert.NoError(t, s.Ping(context.Background()))
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "001_local_storage.up.sql")
}

func TestStore_Migrate(t *testing.T) {
	s, mock := newStoreTestFixture(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_local_storage.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, s.Migrate(context.Background(), logger.Discard()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
