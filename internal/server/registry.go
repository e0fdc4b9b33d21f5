// Package server tracks the set of live chat sessions through the Registry
// type, which owns the only cross-session mutable state in the relay.
package server

import (
	"sync"

	"github.com/samber/lo"
)

// Registry tracks live sessions and the display name bound to each. All
// mutations are serialized by one mutex scoped tightly around the map access;
// the lock is never held across a blocking network write, so a slow recipient
// cannot stall registration or unregistration.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Client]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Client]string)}
}

// Register adds a session with no display name bound yet. The caller
// guarantees a single registration per physical connection.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.closed = false
	r.sessions[c] = ""
}

// Unregister removes the session and closes its send queue, reporting whether
// the session was still present. Unregistering an absent session is a no-op;
// disconnect races are expected.
func (r *Registry) Unregister(c *Client) bool {
	if !r.remove(c) {
		return false
	}
	// Closed after the lock is released; remove already marked the session
	// so no deliver can race the close.
	close(c.send)
	return true
}

// remove unbinds the session and marks it closed under the write lock. The
// caller closes the send queue afterwards.
func (r *Registry) remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[c]; !ok {
		return false
	}
	delete(r.sessions, c)
	c.closed = true
	return true
}

// SetDisplayName rebinds the name associated with a registered session in
// place. Unknown sessions are ignored.
func (r *Registry) SetDisplayName(c *Client, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[c]; ok {
		r.sessions[c] = name
	}
}

// DisplayName returns the name bound to the session, or "" when none is
// bound or the session is unknown.
func (r *Registry) DisplayName(c *Client) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[c]
}

// Snapshot returns a point-in-time copy of the live sessions that is safe to
// iterate while the registry keeps mutating.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.sessions)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// deliver enqueues the payload on the session's send queue without blocking.
// The read lock spans the membership check and the enqueue so a concurrent
// Unregister cannot close the queue mid-send. A full queue or an unregistered
// session reports false.
func (r *Registry) deliver(c *Client, payload []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.sessions[c]; !ok || c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
