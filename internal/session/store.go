package session

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrIncompleteSession is returned when a partial record is passed to Set
	ErrIncompleteSession = errors.New("session record is incomplete")
	// ErrStoreClosed is returned when a store is used after Close
	ErrStoreClosed = errors.New("session store is closed")
)

// Listener is invoked with the new session value after every mutation of the
// store, nil meaning the session was cleared. Listeners of the same store
// run in no particular order.
type Listener func(*Session)

// Store defines persistence of the current session for one storage origin.
// Get applies no freshness policy — expiry handling belongs to the caller.
// Implementations perform no identity-provider calls: pure persistence plus
// change notification.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
	// Subscribe registers a listener and returns its unsubscribe handle.
	Subscribe(fn Listener) (unsubscribe func())
	Close() error
}

// listenerSet is the notification fan-out shared by store implementations.
type listenerSet struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]Listener
}

func newListenerSet() *listenerSet {
	return &listenerSet{fns: make(map[int]Listener)}
}

func (l *listenerSet) add(fn Listener) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

// notify invokes every registered listener with the new value. Listeners are
// snapshotted first so an unsubscribe from inside a callback cannot deadlock.
func (l *listenerSet) notify(s *Session) {
	l.mu.Lock()
	fns := make([]Listener, 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(s.clone())
	}
}
