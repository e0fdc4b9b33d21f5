// Package server implements the core HTTP and WebSocket functionality of the
// chat relay.
//
// The implementation is organized into specialized files: the connection
// registry, the broadcast hub, per-session clients with their read/write
// pumps, configuration, origin policy, routing, and the HTTP handlers for
// registration, throttled login, and upgrades.
package server
