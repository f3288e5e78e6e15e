package session

import (
	"context"
	"sync"
)

// memoryStore keeps the session in process memory. It is the default backend
// for a single-process host and the substitute store for tests.
type memoryStore struct {
	mu        sync.RWMutex
	current   *Session
	closed    bool
	listeners *listenerSet
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore() Store {
	return &memoryStore{listeners: newListenerSet()}
}

// Get returns the current session, or nil if none is stored.
func (m *memoryStore) Get(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	return m.current.clone(), nil
}

// Set persists the session, overwriting any prior value, and synchronously
// notifies listeners.
func (m *memoryStore) Set(ctx context.Context, s *Session) error {
	if !s.Valid() {
		return ErrIncompleteSession
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStoreClosed
	}
	m.current = s.clone()
	m.mu.Unlock()

	m.listeners.notify(s)
	return nil
}

// Clear removes the persisted session and synchronously notifies listeners.
// Clearing an already-empty store still notifies: callers rely on the event
// to converge, not on the prior value.
func (m *memoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStoreClosed
	}
	m.current = nil
	m.mu.Unlock()

	m.listeners.notify(nil)
	return nil
}

func (m *memoryStore) Subscribe(fn Listener) func() {
	return m.listeners.add(fn)
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.current = nil
	return nil
}
