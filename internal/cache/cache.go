// internal/cache/cache.go
//
// Package cache provides a keyed cache for normalized GitHub data with TTL
// and force-bypass semantics, backed by a pluggable store.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Entry is one cached value. A nil ExpiresAt means the entry never expires
// under normal TTL checks; only a forced refresh replaces it.
type Entry struct {
	Payload   json.RawMessage `json:"data"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt *time.Time      `json:"expiresAt"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Store is the backing key-value storage. Get returns ok=false on a miss;
// implementations must treat their own read failures as misses or surface
// them so the Cache can degrade.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}

// Cache evaluates the read/write policy on top of a Store.
type Cache struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Cache over the given store.
func New(store Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Fetch returns the cached value for key when present and fresh, otherwise
// invokes producer and stores the result. force always invokes producer and
// overwrites the stored value. ttl <= 0 stores a never-expiring entry.
//
// Concurrent calls with the same missing key may both invoke the producer;
// the last write wins. The workload is read-heavy, so this race is accepted.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, force bool, producer func(context.Context) (T, error)) (T, error) {
	var zero T

	if !force {
		entry, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Debug("cache read failed", "key", key, "error", err)
		} else if ok && !entry.Expired(c.now()) {
			var v T
			if err := json.Unmarshal(entry.Payload, &v); err == nil {
				return v, nil
			}
			c.logger.Debug("cache entry undecodable, refetching", "key", key)
		}
	}

	v, err := producer(ctx)
	if err != nil {
		return zero, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Debug("cache encode failed", "key", key, "error", err)
		return v, nil
	}

	entry := Entry{Payload: payload, StoredAt: c.now()}
	if ttl > 0 {
		expires := c.now().Add(ttl)
		entry.ExpiresAt = &expires
	}
	if err := c.store.Set(ctx, key, entry); err != nil {
		// Cache writes are best-effort.
		c.logger.Debug("cache write failed", "key", key, "error", err)
	}

	return v, nil
}
