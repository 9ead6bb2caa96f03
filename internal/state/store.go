// Package state holds the process-wide current state and lets any number of
// readers follow its changes.
package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lyric-companion/backend/internal/model"
)

// ErrCursorClosed is returned by Next once the cursor has been released.
var ErrCursorClosed = errors.New("state cursor closed")

// Store owns the single CurrentState. Set replaces it and wakes every waiting
// Cursor; there is no history beyond the latest value.
//
// Concurrent Set calls race and the last one to complete wins.
type Store struct {
	mu      sync.RWMutex
	current model.CurrentState
	version uint64
	changed chan struct{}

	subscribers atomic.Int64
}

// NewStore creates a Store holding the default state.
func NewStore() *Store {
	return &Store{
		current: model.DefaultState(),
		changed: make(chan struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() model.CurrentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Set atomically replaces the current state and notifies all subscribers.
// Content is not validated.
func (s *Store) Set(st model.CurrentState) {
	next := st.Clone()

	s.mu.Lock()
	s.current = next
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Version returns the number of Set calls applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns the current state together with its version.
func (s *Store) Snapshot() (model.CurrentState, uint64) {
	st, v, _ := s.snapshot()
	return st, v
}

// Subscribers returns the number of open cursors.
func (s *Store) Subscribers() int {
	return int(s.subscribers.Load())
}

// Subscribe returns a cursor positioned at the current version, so the first
// Next call waits for the next change.
func (s *Store) Subscribe() *Cursor {
	s.mu.RLock()
	seen := s.version
	s.mu.RUnlock()

	s.subscribers.Add(1)
	return &Cursor{
		store:  s,
		seen:   seen,
		closed: make(chan struct{}),
	}
}

func (s *Store) snapshot() (model.CurrentState, uint64, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone(), s.version, s.changed
}

// Cursor follows a Store. It never misses that a change happened but may skip
// intermediate values: Next always yields the newest state at the time it wakes.
// A Cursor must be used from one goroutine at a time.
type Cursor struct {
	store  *Store
	seen   uint64
	closed chan struct{}
	once   sync.Once
}

// Latest returns the current state and marks it as seen.
func (c *Cursor) Latest() model.CurrentState {
	st, v, _ := c.store.snapshot()
	c.seen = v
	return st
}

// Changed reports whether the store has moved past the last value this cursor saw.
func (c *Cursor) Changed() bool {
	return c.store.Version() != c.seen
}

// Next blocks until the store holds a value newer than the last one observed
// through this cursor and returns it.
func (c *Cursor) Next(ctx context.Context) (model.CurrentState, error) {
	for {
		select {
		case <-c.closed:
			return model.CurrentState{}, ErrCursorClosed
		default:
		}

		st, v, changed := c.store.snapshot()
		if v != c.seen {
			c.seen = v
			return st, nil
		}

		select {
		case <-changed:
		case <-c.closed:
			return model.CurrentState{}, ErrCursorClosed
		case <-ctx.Done():
			return model.CurrentState{}, ctx.Err()
		}
	}
}

// Close releases the cursor. It is safe to call more than once.
func (c *Cursor) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.store.subscribers.Add(-1)
	})
}
