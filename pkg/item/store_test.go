package item

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func itemRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "description", "created_at"})
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, name, description, created_at FROM items ORDER BY id").
		WillReturnRows(itemRows().
			AddRow(int64(1), "first", "the first item", now).
			AddRow(int64(2), "second", "the second item", now))

	items, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "second", items[1].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List_Empty(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, description, created_at FROM items").
		WillReturnRows(itemRows())

	items, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPostgresStore_List_QueryError(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, description, created_at FROM items").
		WillReturnError(errors.New("connection reset"))

	_, err := store.List(context.Background())
	require.Error(t, err)

	var kErr *kerr.Error
	require.ErrorAs(t, err, &kErr)
	assert.Equal(t, kerr.CodeInternalDatabase, kErr.Code)
}

func TestPostgresStore_FindByID_Found(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, created_at FROM items WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(itemRows().AddRow(int64(1), "first", "the first item", now))

	it, err := store.FindByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "first", it.Name)
}

func TestPostgresStore_FindByID_Absent(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, description, created_at FROM items WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(itemRows())

	it, err := store.FindByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, it)
}

func TestPostgresStore_Insert(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO items").
		WithArgs("new item", "freshly made").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), now))

	it := &Item{Name: "new item", Description: "freshly made"}
	require.NoError(t, store.Insert(context.Background(), it))
	assert.Equal(t, int64(9), it.ID)
	assert.Equal(t, now, it.CreatedAt)
}

func TestPostgresStore_Update_Success(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE items SET name").
		WithArgs("renamed", "new text", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	it := &Item{ID: 1, Name: "renamed", Description: "new text"}
	require.NoError(t, store.Update(context.Background(), it))
}

func TestPostgresStore_Update_NoRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE items SET name").
		WithArgs("renamed", "new text", int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	it := &Item{ID: 404, Name: "renamed", Description: "new text"}
	err := store.Update(context.Background(), it)
	require.Error(t, err)

	var kErr *kerr.Error
	require.ErrorAs(t, err, &kErr)
	assert.Equal(t, kerr.CodeNotFound, kErr.Code)
}

func TestPostgresStore_Delete_Success(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM items WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Delete(context.Background(), 1))
}

func TestPostgresStore_Delete_NoRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM items WHERE id").
		WithArgs(int64(404)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.Delete(context.Background(), 404)
	require.Error(t, err)

	var kErr *kerr.Error
	require.ErrorAs(t, err, &kErr)
	assert.Equal(t, kerr.CodeNotFound, kErr.Code)
}
