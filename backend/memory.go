// Package backend provides reference implementations of engine.Backend — the
// external collaborator the transaction engine deliberately keeps out of its
// own scope (serialization, durability and cross-process coordination are
// all left to the adapter).
package backend

import (
	"context"
	"sync"

	"github.com/izure1/mvcc-api/engine"
)

// Memory is a mutex-protected in-memory map adapter. It is the simplest
// Backend: every Write/Delete is reflected synchronously to the very next
// Read/Exists, and nothing survives process exit.
type Memory[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// NewMemory constructs an empty Memory backend.
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{data: make(map[K]V)}
}

var _ engine.Backend[string, string] = (*Memory[string, string])(nil)

func (m *Memory[K, V]) Read(_ context.Context, key K) (V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		var zero V
		return zero, engine.ErrBackendKeyNotFound
	}
	return v, nil
}

func (m *Memory[K, V]) Write(_ context.Context, key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory[K, V]) Delete(_ context.Context, key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory[K, V]) Exists(_ context.Context, key K) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

// Len reports the number of keys currently stored, for tests and metrics.
func (m *Memory[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
