// Package storage is the key-value persistence port used for session
// state such as command history.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get and Delete for unknown keys.
var ErrNotFound = errors.New("storage: key not found")

// Store persists opaque values by key.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
}

const valueExt = ".json"

// FS stores one file per key on an afero filesystem.
type FS struct {
	fs afero.Fs
	mu sync.RWMutex
}

// NewMemory returns a store that lives for the process only.
func NewMemory() *FS {
	return NewFS(afero.NewMemMapFs())
}

// NewDir returns a store rooted at dir on the host filesystem. The
// directory is created if missing.
func NewDir(dir string) (*FS, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return NewFS(afero.NewBasePathFs(osFs, dir)), nil
}

// NewFS wraps an existing filesystem.
func NewFS(fsys afero.Fs) *FS {
	return &FS{fs: fsys}
}

func keyPath(key string) string {
	return "/" + url.PathEscape(key) + valueExt
}

func (s *FS) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Set writes value through a temporary file so readers never observe a
// partial value.
func (s *FS) Set(key string, value []byte) error {
	if key == "" {
		return errors.New("storage: empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := keyPath(key)
	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (s *FS) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

// Keys lists stored keys in sorted order.
func (s *FS) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), valueExt)
		if e.IsDir() || !ok {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
