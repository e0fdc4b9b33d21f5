// Package server coordinates message broadcast and session lifecycle for the
// chat relay via the Hub type.
package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chatrelay/internal/logging"
)

// Hub is the broadcast engine. It accepts an inbound frame from one session,
// appends it to the audit log, and fans it out to every live session,
// including the sender; the echo back to origin is part of the protocol.
type Hub struct {
	cfg      Config
	registry *Registry
	audit    *logging.AuditLog
	log      *logging.Logger
	wg       sync.WaitGroup
}

// NewHub creates a hub over the given registry, audit log, and logger.
func NewHub(cfg Config, registry *Registry, audit *logging.AuditLog, log *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		registry: registry,
		audit:    audit,
		log:      log,
	}
}

// Registry returns the connection registry the hub fans out over.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish processes one inbound frame from a session: parse, bind the
// declared user name onto the sender, append the audit line, then deliver the
// original bytes verbatim to every live session.
//
// The audit append happens before any delivery starts (write-ahead ordering)
// and exactly once per parsed frame. An append failure is reported as a
// *PersistError after fan-out has still run; a frame that does not parse is
// reported as a *ParseError and produces neither an audit line nor a
// broadcast.
func (h *Hub) Publish(from *Client, raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return &ParseError{Err: err}
	}

	user := "Unknown"
	if msg.User != nil && *msg.User != "" {
		user = *msg.User
		h.registry.SetDisplayName(from, user)
	}

	var persistErr error
	if err := h.audit.Append(time.Now(), user, msg.Content); err != nil {
		persistErr = &PersistError{Err: err}
		h.log.Error(fmt.Sprintf("Failed to append chat message to audit log: %v", err))
	}

	var failed []*Client
	for _, c := range h.registry.Snapshot() {
		if !h.registry.deliver(c, raw) {
			failed = append(failed, c)
		}
	}
	h.evict(failed)

	return persistErr
}

// evict drops sessions whose send queue was closed or full. One dead
// recipient never aborts delivery to the rest.
func (h *Hub) evict(failed []*Client) {
	for _, c := range failed {
		if h.registry.Unregister(c) {
			h.log.Warning(fmt.Sprintf("Session %s from %s removed due to full send queue", c.id, c.addr))
		}
	}
}

// StartSession registers the client and launches its read and write pumps.
func (h *Hub) StartSession(c *Client) {
	h.registry.Register(c)
	h.log.Info(fmt.Sprintf("Session %s registered from %s. Total sessions: %d", c.id, c.addr, h.registry.Len()))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// EndSession removes the client from the registry and closes its send queue.
// Safe to call more than once; only the first call does anything.
func (h *Hub) EndSession(c *Client) {
	name := h.registry.DisplayName(c)
	if !h.registry.Unregister(c) {
		return
	}
	if name == "" {
		name = "Unknown"
	}
	h.log.Info(fmt.Sprintf("Session %s (%s) disconnected. Total sessions: %d", c.id, name, h.registry.Len()))
}

// Shutdown closes every live session's connection and waits for the pump
// goroutines to finish, or gives up after the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	sessions := h.registry.Snapshot()
	h.log.Info(fmt.Sprintf("Shutting down %d chat sessions", len(sessions)))

	for _, c := range sessions {
		if c.conn == nil {
			h.EndSession(c)
			continue
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Error(fmt.Sprintf("Error closing session %s: %v", c.id, err))
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warning("Hub shutdown timeout reached, some sessions may still be closing")
		return fmt.Errorf("hub shutdown timed out after %s", timeout)
	}
}
