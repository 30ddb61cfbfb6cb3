package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// BASIC OPERATIONS
// =============================================================================

func TestStore_SetGetRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "userXP")
	require.NoError(t, err)
	assert.False(t, ok, "missing key reports not found")

	require.NoError(t, store.Set(ctx, "userXP", "2847"))
	require.NoError(t, store.Set(ctx, "userXP", "3000"))

	v, ok, err := store.Get(ctx, "userXP")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3000", v, "set overwrites")

	require.NoError(t, store.Remove(ctx, "userXP", "never-set"))
	_, ok, err = store.Get(ctx, "userXP")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SetMany(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string]string{
		"userXP":    "3347",
		"userLevel": "4",
	}))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"userLevel", "userXP"}, keys)
	assert.NoError(t, store.Ping(ctx))
}

func TestStore_FilePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gami.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "icp_principal", "user-1-cai"))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "icp_principal")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1-cai", v)
}

// =============================================================================
// FAILURE PATHS (sqlmock)
// =============================================================================

func newMockStore(t *testing.T) (*sqlite.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := sqlite.NewWithDB(db)
	require.NoError(t, err)
	return store, mock
}

func TestStore_SetManyRollsBackOnFailure(t *testing.T) {
	// GIVEN: A database that fails the first write inside the transaction
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO kv").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	// WHEN: Writing a batch
	err := store.SetMany(context.Background(), map[string]string{"userXP": "1"})

	// THEN: The error surfaces and the transaction is rolled back
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetManyCommitFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO kv").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := store.SetMany(context.Background(), map[string]string{"userXP": "1"})
	assert.ErrorContains(t, err, "failed to commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM kv").WillReturnError(errors.New("boom"))

	_, ok, err := store.Get(context.Background(), "userXP")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithDB_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only database"))

	_, err = sqlite.NewWithDB(db)
	assert.ErrorContains(t, err, "migrate")
}
