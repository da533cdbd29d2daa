// Package keylock provides a set of mutexes addressed by key.
package keylock

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map serializes work per key. Entries are dropped once no goroutine holds
// or waits on them, so the map does not grow with the number of keys seen.
type Map struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

// New returns an empty lock map.
func New() *Map {
	return &Map{locks: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the lock for key is held and returns its release function.
func (m *Map) Lock(key uuid.UUID) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
