// Package server constructs and runs the HTTP service hosting the chat relay.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chatrelay/internal/logging"
)

// CreateServer creates an HTTP server with the given address and handler and
// timeout values suitable for production use. The read and write timeouts do
// not apply to hijacked WebSocket connections.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it exits.
func StartServer(server *http.Server) error {
	fmt.Printf("Server listening on %s\n", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// requests to finish or the timeout to expire.
func ShutdownServer(server *http.Server, timeout time.Duration, log *logging.Logger) error {
	log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error(fmt.Sprintf("HTTP server shutdown error: %v", err))
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
