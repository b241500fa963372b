package user

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
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

func userRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "subject_id", "username", "email", "display_name",
		"is_active", "created_at", "updated_at", "last_synced_at",
	})
}

func strPtr(s string) *string { return &s }

func TestPostgresStore_FindBySubjectID_Found(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM app_users WHERE subject_id = $1")).
		WithArgs("subj-1").
		WillReturnRows(userRows().AddRow(
			int64(7), "subj-1", "ann", strPtr("ann@example.com"), "Ann Lee",
			true, now, now, now,
		))

	u, err := store.FindBySubjectID(context.Background(), "subj-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "subj-1", u.SubjectID)
	assert.Equal(t, "ann", u.Username)
	require.NotNil(t, u.Email)
	assert.Equal(t, "ann@example.com", *u.Email)
	assert.Equal(t, "Ann Lee", u.DisplayName)
	assert.True(t, u.IsActive)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindBySubjectID_Absent(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM app_users WHERE subject_id").
		WithArgs("ghost").
		WillReturnRows(userRows())

	u, err := store.FindBySubjectID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u, "absence is an answer, not an error")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindBySubjectID_NullEmail(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM app_users WHERE subject_id").
		WithArgs("subj-2").
		WillReturnRows(userRows().AddRow(
			int64(8), "subj-2", "bob", nil, "Bob",
			true, now, now, now,
		))

	u, err := store.FindBySubjectID(context.Background(), "subj-2")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Nil(t, u.Email)
}

func TestPostgresStore_FindByID_Found(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM app_users WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(
			int64(7), "subj-1", "ann", nil, "Ann",
			true, now, now, now,
		))

	u, err := store.FindByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "subj-1", u.SubjectID)
}

func TestPostgresStore_Exists(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("subj-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.Exists(context.Background(), "subj-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresStore_Exists_QueryError(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("subj-1").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Exists(context.Background(), "subj-1")
	require.Error(t, err)

	var kErr *kerr.Error
	require.ErrorAs(t, err, &kErr)
	assert.Equal(t, kerr.CodeInternalDatabase, kErr.Code)
}

func TestPostgresStore_Insert_PopulatesGeneratedFields(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO app_users").
		WithArgs("subj-1", "ann", strPtr("ann@example.com"), "Ann Lee", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at", "last_synced_at"}).
			AddRow(int64(42), now, now, now))

	u := &User{
		SubjectID:   "subj-1",
		Username:    "ann",
		Email:       strPtr("ann@example.com"),
		DisplayName: "Ann Lee",
		IsActive:    true,
	}
	require.NoError(t, store.Insert(context.Background(), u))
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, now, u.CreatedAt)
}

func TestPostgresStore_Insert_UniqueViolation(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO app_users").
		WithArgs("subj-1", "ann", (*string)(nil), "Ann", true).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "app_users_subject_id_key"})

	u := &User{SubjectID: "subj-1", Username: "ann", DisplayName: "Ann", IsActive: true}
	err := store.Insert(context.Background(), u)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err),
		"unique violation must survive wrapping for the reconciler to detect")
}

func TestPostgresStore_Update_Success(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE app_users").
		WithArgs("ann", strPtr("new@example.com"), "Ann Lee", true, "subj-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	u := &User{
		SubjectID:   "subj-1",
		Username:    "ann",
		Email:       strPtr("new@example.com"),
		DisplayName: "Ann Lee",
		IsActive:    true,
	}
	require.NoError(t, store.Update(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_NoRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE app_users").
		WithArgs("ann", (*string)(nil), "Ann", true, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	u := &User{SubjectID: "ghost", Username: "ann", DisplayName: "Ann", IsActive: true}
	err := store.Update(context.Background(), u)
	require.Error(t, err)

	var kErr *kerr.Error
	require.ErrorAs(t, err, &kErr)
	assert.Equal(t, kerr.CodeUserNotFound, kErr.Code)
}

func TestPostgresStore_TouchLastSynced(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE app_users SET last_synced_at = now() WHERE subject_id = $1")).
		WithArgs("subj-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.TouchLastSynced(context.Background(), "subj-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "23505"}
	assert.True(t, IsUniqueViolation(pgErr))
	assert.True(t, IsUniqueViolation(kerr.Wrap(pgErr, kerr.CodeInternalDatabase, "wrapped")))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain error")))
	assert.False(t, IsUniqueViolation(nil))
}
