// Package storage holds host-side preferences (default slippage, active
// component, theme) behind a small key-value adapter so the feature
// providers stay free of persistence concerns.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known preference keys.
const (
	KeyMaxSlippage     = "maxSlippage"
	KeyActiveComponent = "activeComponent"
	KeyTheme           = "theme"
)

const DefaultFileName = ".walletkit.json"

// Adapter is the persistence interface injected into providers.
type Adapter interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Memory is an in-process adapter, used in tests and as the fallback when
// no file store is configured.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStore persists preferences as a JSON file, written atomically via a
// temp file and rename.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	values   map[string]string
}

// NewFileStore loads (or lazily creates) a file-backed store. An empty path
// defaults to DefaultFileName in the user's home directory.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	store := &FileStore{
		filePath: filePath,
		values:   make(map[string]string),
	}

	if err := store.load(); err != nil {
		// Missing file is fine, it gets created on first save.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load preferences: %w", err)
		}
	}

	return store, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	s.values = values
	return nil
}

func (s *FileStore) save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.values, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file first, then rename for an atomic write.
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return s.save()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return s.save()
}

// FilePath returns the backing file path.
func (s *FileStore) FilePath() string {
	return s.filePath
}
