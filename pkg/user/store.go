package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// uniqueViolationCode is the PostgreSQL error code for a unique
// constraint violation.
const uniqueViolationCode = "23505"

// Querier is the database surface the store needs. Both
// [postgres.Client] and pgxmock satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the persistence port for local users. Absence is an answer:
// lookups return (nil, nil) when no row matches.
type Store interface {
	// FindBySubjectID returns the user with the given provider subject
	// id, or nil when none exists.
	FindBySubjectID(ctx context.Context, subjectID string) (*User, error)

	// FindByID returns the user with the given local id, or nil when
	// none exists.
	FindByID(ctx context.Context, id int64) (*User, error)

	// Exists reports whether a user with the given subject id exists.
	// Cheaper than FindBySubjectID for the per-request gate.
	Exists(ctx context.Context, subjectID string) (bool, error)

	// Insert persists a new user and populates its ID and timestamps.
	// A concurrent insert for the same subject id surfaces as an error
	// recognized by [IsUniqueViolation].
	Insert(ctx context.Context, u *User) error

	// Update persists the user's mutable identity fields and refreshes
	// updated_at and last_synced_at.
	Update(ctx context.Context, u *User) error

	// TouchLastSynced refreshes only last_synced_at, for the common
	// case of an unchanged identity re-asserting itself.
	TouchLastSynced(ctx context.Context, subjectID string) error
}

// IsUniqueViolation reports whether the error (anywhere in its wrap
// chain) is a PostgreSQL unique constraint violation. The reconciler
// treats this as "someone else just created the row".
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// PostgresStore persists users in the app_users table.
type PostgresStore struct {
	db Querier
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a user store backed by the given database.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = "id, subject_id, username, email, display_name, is_active, created_at, updated_at, last_synced_at"

// FindBySubjectID returns the user with the given subject id, or nil
// when no row matches.
func (s *PostgresStore) FindBySubjectID(ctx context.Context, subjectID string) (*User, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM app_users WHERE subject_id = $1",
		subjectID)
	return scanUser(row)
}

// FindByID returns the user with the given local id, or nil when no row
// matches.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM app_users WHERE id = $1",
		id)
	return scanUser(row)
}

// Exists reports whether a user with the given subject id exists.
func (s *PostgresStore) Exists(ctx context.Context, subjectID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM app_users WHERE subject_id = $1)",
		subjectID).Scan(&exists)
	if err != nil {
		return false, kerr.Wrap(err, kerr.CodeInternalDatabase, "user: existence check failed")
	}
	return exists, nil
}

// Insert persists a new user row and populates the generated id and
// timestamps. Unique violations are returned unwrapped inside the error
// chain so [IsUniqueViolation] can recognize them.
func (s *PostgresStore) Insert(ctx context.Context, u *User) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO app_users (subject_id, username, email, display_name, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at, last_synced_at`,
		u.SubjectID, u.Username, u.Email, u.DisplayName, u.IsActive).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.LastSyncedAt)
	if err != nil {
		return kerr.Wrap(err, kerr.CodeInternalDatabase, "user: insert failed")
	}
	return nil
}

// Update persists the user's identity fields, refreshing updated_at and
// last_synced_at.
func (s *PostgresStore) Update(ctx context.Context, u *User) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE app_users
		 SET username = $1, email = $2, display_name = $3, is_active = $4,
		     updated_at = now(), last_synced_at = now()
		 WHERE subject_id = $5`,
		u.Username, u.Email, u.DisplayName, u.IsActive, u.SubjectID)
	if err != nil {
		return kerr.Wrap(err, kerr.CodeInternalDatabase, "user: update failed")
	}
	if tag.RowsAffected() == 0 {
		return kerr.Newf(kerr.CodeUserNotFound, "user: no row for subject %q", u.SubjectID)
	}
	return nil
}

// TouchLastSynced refreshes only the last_synced_at timestamp.
func (s *PostgresStore) TouchLastSynced(ctx context.Context, subjectID string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE app_users SET last_synced_at = now() WHERE subject_id = $1",
		subjectID)
	if err != nil {
		return kerr.Wrap(err, kerr.CodeInternalDatabase, "user: timestamp touch failed")
	}
	return nil
}

// scanUser scans a single user row, mapping pgx.ErrNoRows to (nil, nil).
func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.SubjectID, &u.Username, &u.Email, &u.DisplayName,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastSyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, kerr.Wrap(err, kerr.CodeInternalDatabase, "user: row scan failed")
	}
	return &u, nil
}
