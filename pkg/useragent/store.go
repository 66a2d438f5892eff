package useragent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// Store keeps one stable User-Agent per identity. The string is generated
// once, then reused for the lifetime of the identity: it is loaded from
// path when present and written back by Save. An empty path keeps the
// User-Agent in memory only.
type Store struct {
	mu   sync.Mutex
	path string
	pool *Pool
	ua   string
}

// NewStore creates a Store persisting to path. A nil pool selects
// DefaultPool.
func NewStore(path string, pool *Pool) *Store {
	if pool == nil {
		pool = NewPool(nil)
	}
	return &Store{path: path, pool: pool}
}

// Get returns the identity's User-Agent, loading it from disk or
// generating a new one on first use. A missing or unreadable file is not
// an error: a fresh User-Agent is generated instead.
func (s *Store) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ua != "" {
		return s.ua
	}
	if s.path != "" {
		if data, err := os.ReadFile(s.path); err == nil {
			if ua := strings.TrimSpace(string(data)); ua != "" {
				s.ua = ua
				return s.ua
			}
		}
	}
	s.ua = s.pool.Pick()
	return s.ua
}

// Save writes the current User-Agent to disk. It is a no-op when the
// store has no path or nothing has been generated yet.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" || s.ua == "" {
		return nil
	}
	if current, err := os.ReadFile(s.path); err == nil && string(current) == s.ua {
		return nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read user agent file: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(s.ua), 0o600); err != nil {
		return fmt.Errorf("write user agent file: %w", err)
	}
	return nil
}

// Path returns the file backing the store, or "" in memory-only mode.
func (s *Store) Path() string {
	return s.path
}
