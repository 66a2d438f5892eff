package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store loads and saves one identity's State. With an empty path it keeps
// the State in memory only.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	state  *State
}

// NewStore returns a Store backed by the cookie file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "session"),
	}
}

// Path returns the cookie file location, or "" in memory-only mode.
func (s *Store) Path() string {
	return s.path
}

// Get returns the State, loading it from disk on first use. It never
// fails: a missing or corrupt file yields an empty State.
func (s *Store) Get() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return s.state
	}
	s.state = s.load()
	return s.state
}

func (s *Store) load() *State {
	if s.path == "" {
		s.logger.Debug("no data directory, session kept in memory")
		return NewState(nil)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read cookie file", "path", s.path, "error", err)
		} else {
			s.logger.Debug("no stored cookies", "path", s.path)
		}
		return NewState(nil)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		s.logger.Warn("corrupt cookie file, starting a fresh session", "path", s.path, "error", err)
		return NewState(nil)
	}

	s.logger.Debug("re-using stored cookies", "path", s.path, "count", len(cookies))
	return NewState(cookies)
}

// Save persists the current State. It is a no-op in memory-only mode or
// before the first Get.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" || s.state == nil {
		return nil
	}

	data, err := json.MarshalIndent(s.state.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}

// Files resolves the cookie and user agent file paths for id in dir. Both
// are empty when dir is empty or does not exist, which puts the caller in
// memory-only mode.
func Files(dir string, id Identity) (cookiePath, uaPath string) {
	if dir == "" {
		return "", ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", ""
	}
	prefix := id.FilePrefix(filepath.Clean(dir))
	if prefix == "" {
		return "", ""
	}
	return prefix + ".cookie", prefix + ".ua"
}
