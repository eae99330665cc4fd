// Package auth tracks whether the backend session is usable and renews it.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FlagStore persists the authenticated flag across restarts.
type FlagStore interface {
	Load() (bool, error)
	Save(authenticated bool) error
}

// sessionFile is the on-disk shape. Only the flag is stored.
type sessionFile struct {
	Authenticated bool `json:"authenticated"`
}

// FileStore keeps the flag in a small JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session state path is required")
	}
	return &FileStore{path: path}, nil
}

// Load reads the flag. A missing file reads as unauthenticated.
func (s *FileStore) Load() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read session file: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return false, fmt.Errorf("failed to parse session file: %w", err)
	}
	return f.Authenticated, nil
}

// Save writes the flag with owner-only permissions.
func (s *FileStore) Save(authenticated bool) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.Marshal(sessionFile{Authenticated: authenticated})
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Delete removes the stored flag.
func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// ModTime returns when the flag was last written, or the zero time if it
// never was.
func (s *FileStore) ModTime() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Path returns the path to the session file.
func (s *FileStore) Path() string {
	return s.path
}

// MemoryStore is a FlagStore that lives only as long as the process.
type MemoryStore struct {
	mu    sync.Mutex
	value bool
	saves int
}

// NewMemoryStore returns a store holding initial.
func NewMemoryStore(initial bool) *MemoryStore {
	return &MemoryStore{value: initial}
}

func (m *MemoryStore) Load() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *MemoryStore) Save(authenticated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = authenticated
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
