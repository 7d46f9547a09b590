// Package scratch holds per-request temporary files used to hand text
// between pipeline stages.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("scratch store closed")

// ErrUnknownKey is returned by Get for keys that were never Put or were released.
var ErrUnknownKey = errors.New("scratch key not found")

// Store is request-scoped scratch storage. The owner must call Close.
type Store interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Release(key string) error
	Close() error
}

// FileStore keeps each entry in its own file under a private temp directory.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	files  map[string]string
	closed bool
}

// NewFileStore creates a fresh directory under base (os.TempDir when empty).
func NewFileStore(base string) (*FileStore, error) {
	dir, err := os.MkdirTemp(base, "explainee-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &FileStore{dir: dir, files: make(map[string]string)}, nil
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	path, ok := s.files[key]
	if !ok {
		f, err := os.CreateTemp(s.dir, "entry-*")
		if err != nil {
			return fmt.Errorf("failed to create scratch file: %w", err)
		}
		path = f.Name()
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close scratch file: %w", err)
		}
		s.files[key] = path
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write scratch entry %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	path, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch entry %q: %w", key, err)
	}
	return data, nil
}

// Release deletes a single entry. Releasing an unknown key is a no-op.
func (s *FileStore) Release(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	path, ok := s.files[key]
	if !ok {
		return nil
	}
	delete(s.files, key)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove scratch entry %q: %w", key, err)
	}
	return nil
}

// Close removes every entry and the directory. Safe to call more than once.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.files = nil
	if err := os.RemoveAll(filepath.Clean(s.dir)); err != nil {
		return fmt.Errorf("failed to remove scratch dir: %w", err)
	}
	return nil
}
