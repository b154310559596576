// internal/kv/memory.go
//
// Keyed string storage used by the score store.
// Two implementations live in this package:
//   - memory (this file): map guarded by an RWMutex; lost on restart.
//   - SQLite (sqlite.go): durable, one row per key.
//
// Missing keys are not errors: Get reports ok=false instead.

package kv

import (
	"context"
	"sync"
)

// Store is a flat string-keyed, string-valued store.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set inserts or overwrites key.
	Set(ctx context.Context, key, value string) error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu   sync.RWMutex      // guards vals
	vals map[string]string // keyed by record key
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() Store {
	return &memory{vals: make(map[string]string)}
}

// Get looks up key.
func (m *memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

// Set adds or replaces key.
func (m *memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}
