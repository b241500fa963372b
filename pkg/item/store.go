package item

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// Querier is the database surface the store needs. Both
// [postgres.Client] and pgxmock satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the persistence port for items. FindByID returns (nil, nil)
// when no row matches; the service layer decides whether absence is an
// error.
type Store interface {
	// List returns all items ordered by id.
	List(ctx context.Context) ([]Item, error)

	// FindByID returns the item with the given id, or nil when none
	// exists.
	FindByID(ctx context.Context, id int64) (*Item, error)

	// Insert persists a new item and populates its ID and CreatedAt.
	Insert(ctx context.Context, it *Item) error

	// Update persists the item's name and description. Returns
	// [kerr.CodeNotFound] when no row matches.
	Update(ctx context.Context, it *Item) error

	// Delete removes the item. Returns [kerr.CodeNotFound] when no row
	// matches.
	Delete(ctx context.Context, id int64) error
}

// PostgresStore persists items in the items table.
type PostgresStore struct {
	db Querier
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates an item store backed by the given database.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// List returns all items ordered by id.
func (s *PostgresStore) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, name, description, created_at FROM items ORDER BY id")
	if err != nil {
		return nil, kerr.Wrap(err, kerr.CodeInternalDatabase, "item: list query failed")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.CreatedAt); err != nil {
			return nil, kerr.Wrap(err, kerr.CodeInternalDatabase, "item: row scan failed")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, kerr.Wrap(err, kerr.CodeInternalDatabase, "item: row iteration failed")
	}
	return items, nil
}

// FindByID returns the item with the given id, or nil when no row
// matches.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*Item, error) {
	var it Item
	err := s.db.QueryRow(ctx,
		"SELECT id, name, description, created_at FROM items WHERE id = $1",
		id).Scan(&it.ID, &it.Name, &it.Description, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, kerr.Wrap(err, kerr.CodeInternalDatabase, "item: lookup failed")
	}
	return &it, nil
}

// Insert persists a new item and populates the generated id and
// timestamp.
func (s *PostgresStore) Insert(ctx context.Context, it *Item) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO items (name, description) VALUES ($1, $2)
		 RETURNING id, created_at`,
		it.Name, it.Description).Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		return kerr.Wrap(err, kerr.CodeInternalDatabase, "item: insert failed")
	}
	return nil
}

// Update persists the item's name and description.
func (s *PostgresStore) Update(ctx context.Context, it *Item) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE items SET name = $1, description = $2 WHERE id = $3",
		it.Name, it.Description, it.ID)
	if err != nil {
		return kerr.Wrap(err, kerr.CodeInternalDatabase, "item: update failed")
	}
	if tag.RowsAffected() == 0 {
		return kerr.Newf(kerr.CodeNotFound, "item: no row with id %d", it.ID)
	}
	return nil
}

// Delete removes the item.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM items WHERE id = $1", id)
	if err != nil {
		return kerr.Wrap(err, kerr.CodeInternalDatabase, "item: delete failed")
	}
	if tag.RowsAffected() == 0 {
		return kerr.Newf(kerr.CodeNotFound, "item: no row with id %d", id)
	}
	return nil
}
