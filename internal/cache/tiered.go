// internal/cache/tiered.go
package cache

import (
	"context"
	"log/slog"
)

// Tiered composes a durable store with a local fallback. Durable failures
// degrade silently to the local tier; the local tier is best-effort too.
type Tiered struct {
	durable Store
	local   Store
	logger  *slog.Logger
}

// NewTiered builds the two-tier store. durable may be nil, in which case
// only the local tier is used.
func NewTiered(durable, local Store, logger *slog.Logger) *Tiered {
	return &Tiered{durable: durable, local: local, logger: logger}
}

// Get prefers the durable tier and falls back to the local one.
func (t *Tiered) Get(ctx context.Context, key string) (Entry, bool, error) {
	if t.durable != nil {
		entry, ok, err := t.durable.Get(ctx, key)
		if err != nil {
			t.logger.Debug("durable cache read failed, falling back", "key", key, "error", err)
		} else if ok {
			return entry, true, nil
		}
	}
	return t.local.Get(ctx, key)
}

// Set writes to both tiers, tolerating failures in either.
func (t *Tiered) Set(ctx context.Context, key string, entry Entry) error {
	if t.durable != nil {
		if err := t.durable.Set(ctx, key, entry); err != nil {
			t.logger.Debug("durable cache write failed", "key", key, "error", err)
		}
	}
	if err := t.local.Set(ctx, key, entry); err != nil {
		t.logger.Debug("local cache write failed", "key", key, "error", err)
	}
	return nil
}
