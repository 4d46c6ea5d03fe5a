// internal/cache/file.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON file per key in a local directory. It is the
// always-available fallback tier: read failures are misses, never errors.
type FileStore struct {
	dir string
}

// NewFileStore creates the cache directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// safeKey sanitizes a cache key into a filesystem-safe token.
func safeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, safeKey(key)+".json")
}

// Get reads the entry for key. Any failure is reported as a miss.
func (s *FileStore) Get(_ context.Context, key string) (Entry, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return Entry{}, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set writes the entry for key.
func (s *FileStore) Set(_ context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(key), data, 0o600)
}
