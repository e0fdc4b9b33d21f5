// Package server defines the wire frame exchanged between chat clients and
// shared helpers reused across session and hub logic.
package server

import (
	"strings"
	"time"
)

// Message is the JSON chat frame. Field names are part of the wire contract
// with existing frontends and must stay capitalized.
type Message struct {
	User      *string   `json:"User,omitempty"`
	Content   string    `json:"Content"`
	Timestamp time.Time `json:"Timestamp"`
}

// ParseError reports a malformed inbound frame. The session loop drops the
// frame and keeps the connection open.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "malformed chat frame: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PersistError reports a failed audit-log append. Fan-out still proceeds;
// delivery is never blocked by a logging fault.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "audit log append failed: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
