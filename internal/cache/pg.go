// internal/cache/pg.go
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the durable cache tier, a single key-value table in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing connection pool. The kv_cache table is
// created by the startup migration.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Get reads the entry for key.
func (s *PGStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var entry Entry
	var expiresAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT payload, stored_at, expires_at FROM kv_cache WHERE key = $1`,
		key,
	).Scan(&entry.Payload, &entry.StoredAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	entry.ExpiresAt = expiresAt
	return entry, true, nil
}

// Set upserts the entry for key.
func (s *PGStore) Set(ctx context.Context, key string, entry Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_cache (key, payload, stored_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE
		 SET payload = EXCLUDED.payload,
		     stored_at = EXCLUDED.stored_at,
		     expires_at = EXCLUDED.expires_at`,
		key, entry.Payload, entry.StoredAt, entry.ExpiresAt,
	)
	return err
}
