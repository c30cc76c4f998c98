// Package trace persists recorded sessions.
package trace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrUnavailable is returned when the backing storage cannot be opened, read or written.
var ErrUnavailable = errors.New("trace storage unavailable")

// Store holds the trace of one session.
type Store interface {
	// Probe checks that a later Save can succeed.
	Probe(ctx context.Context) error
	// Load returns the stored trace.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored trace.
	Save(ctx context.Context, data []byte) error
}

// DefaultPath is where the trace is written when no path is configured.
const DefaultPath = "recording.txt"

// FileStore keeps the trace in a single text file.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{Path: path}
}

func (s *FileStore) Probe(ctx context.Context) error {
	dir := filepath.Dir(s.Path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrUnavailable, dir)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Save writes data to a temporary file next to the target and renames it into
// place, so a reader never sees a partial trace.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrUnavailable, err)
	}
	return nil
}

// MemoryStore keeps the trace in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
	ok   bool
}

// NewMemoryStore creates a MemoryStore, optionally holding an initial trace.
func NewMemoryStore(data []byte) *MemoryStore {
	s := &MemoryStore{}
	if data != nil {
		s.data = append([]byte(nil), data...)
		s.ok = true
	}
	return s
}

func (s *MemoryStore) Probe(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return nil, fmt.Errorf("%w: no trace saved", ErrUnavailable)
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.ok = true
	return nil
}
