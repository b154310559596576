// internal/store/memory.go
//
// In-memory registry of live game sessions.
//
// Characteristics:
//   - Holds *game.Engine values keyed by session ID.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Removing a session closes its engine so no timer or pending resolution
//     outlives it.
//   - State is lost when the process restarts; scores live in internal/scores.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/memory-match/internal/game"
)

// ErrNotFound is returned by Get for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Store defines the registry interface for live sessions.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, e *game.Engine) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*game.Engine, error)

	// Delete closes and forgets a session. Unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Sweep closes and forgets sessions idle since before cutoff and
	// returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex            // guards sessions map
	sessions map[string]*game.Engine // keyed by Engine.ID()
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*game.Engine)}
}

// Save adds or updates the session in the map.
func (m *memory) Save(ctx context.Context, e *game.Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[e.ID()]; ok && old != e {
		old.Close()
	}
	m.sessions[e.ID()] = e
	return nil
}

// Get looks up a session by ID.
func (m *memory) Get(ctx context.Context, id string) (*game.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

// Delete closes the engine and removes it.
func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		e.Close()
	}
	return nil
}

// Sweep removes sessions whose last activity is before cutoff.
func (m *memory) Sweep(ctx context.Context, cutoff time.Time) int {
	var stale []*game.Engine
	m.mu.Lock()
	for id, e := range m.sessions {
		if e.LastActive().Before(cutoff) {
			stale = append(stale, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.Close()
	}
	return len(stale)
}
