package session

import (
	"sync"

	"github.com/mrz1836/compass/internal/chain"
)

// Holder owns the current session and a generation counter. Each
// reconciliation begins a generation; only the newest generation may commit,
// so a slow result for an earlier selection never overwrites a newer one.
type Holder struct {
	mu         sync.Mutex
	current    *Session
	generation uint64
}

// NewHolder creates a holder seeded with s.
func NewHolder(s *Session) *Holder {
	h := &Holder{}
	if s != nil {
		h.current = s.Clone()
		h.generation = s.Generation
	}
	return h
}

// Current returns a copy of the current session, or nil before Replace.
func (h *Holder) Current() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Clone()
}

// Begin starts a new generation and returns it. Any generation begun earlier
// becomes stale.
func (h *Holder) Begin() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.generation++
	return h.generation
}

// Latest returns the newest generation handed out.
func (h *Holder) Latest() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

// Commit applies fn to the current session if gen is still the newest
// generation. It returns the resulting session and whether it was stored.
// A stale commit leaves the session untouched and returns the current one.
func (h *Holder) Commit(gen uint64, fn func(Session) Session) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil || gen != h.generation {
		return h.current.Clone(), false
	}

	next := fn(*h.current.Clone())
	next.Generation = gen
	h.current = &next
	return next.Clone(), true
}

// Observe records the chain the provider was left on by an operation that
// is not a selection. The generation is unchanged, so an in-flight selection
// can still commit and its chain wins.
func (h *Holder) Observe(id chain.ID) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		return nil, false
	}
	next := h.current.Clone().WithObservedChain(id)
	h.current = &next
	return next.Clone(), true
}

// Replace installs a new session (after a reconnect) and invalidates every
// in-flight generation.
func (h *Holder) Replace(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.generation++
	if s == nil {
		h.current = nil
		return
	}
	c := s.Clone()
	c.Generation = h.generation
	h.current = c
}
