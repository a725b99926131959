package backend

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/izure1/mvcc-api/engine"
)

// FileStore is a one-JSON-file-per-key Backend: every committed value is
// serialized with encoding/json and written under a root directory. Value
// serialization here is purely this adapter's own concern — the engine
// itself treats V as fully opaque and never marshals anything.
type FileStore[V any] struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates (if needed) dir and returns a FileStore rooted there.
func NewFileStore[V any](dir string) (*FileStore[V], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore[V]{dir: dir}, nil
}

var _ engine.Backend[string, string] = (*FileStore[string])(nil)

func (f *FileStore[V]) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *FileStore[V]) Read(_ context.Context, key string) (V, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var value V
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return value, engine.ErrBackendKeyNotFound
		}
		return value, err
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, err
	}
	return value, nil
}

func (f *FileStore[V]) Write(_ context.Context, key string, value V) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(key), data, 0o644)
}

func (f *FileStore[V]) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore[V]) Exists(_ context.Context, key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, err := os.Stat(f.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
