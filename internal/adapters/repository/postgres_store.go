package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskmaster/kanban/internal/ports"
)

// PostgresStore implements ports.BlobStore on a two-column key/value table
type PostgresStore struct {
	db       *sqlx.DB
	getQuery string
	setQuery string
}

// NewPostgresStore creates a blob store over table (see migrations/)
func NewPostgresStore(db *sqlx.DB, table string) *PostgresStore {
	t := pq.QuoteIdentifier(table)
	return &PostgresStore{
		db:       db,
		getQuery: fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, t),
		setQuery: fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, t),
	}
}

var _ ports.BlobStore = (*PostgresStore)(nil)

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, s.getQuery, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get blob %q: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.setQuery, key, value); err != nil {
		return fmt.Errorf("set blob %q: %w", key, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to database.DB.
func (s *PostgresStore) Close() error {
	return nil
}
