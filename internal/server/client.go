// Package server manages individual chat sessions, handling the read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatrelay/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to the peer with this period; must be less than pongWait.
	pingPeriod = 54 * time.Second
	// Outbound queue capacity per session.
	sendQueueSize = 256
)

// Client represents one live chat session: the WebSocket connection, its
// buffered outbound queue, and the read loop state. The registry owns the
// session from registration to unregistration; the pumps hold non-owning
// references.
type Client struct {
	id             uuid.UUID
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool // guarded by the registry lock
	maxMessageSize int64
	limiter        *rateLimiter
	rate           RateLimitConfig
	log            *logging.Logger
}

// NewClient creates a session over the given connection. The read limit and
// rate-limit parameters come from the hub's configuration.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             uuid.New(),
		conn:           conn,
		send:           make(chan []byte, sendQueueSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rate:           cfg.RateLimit,
		log:            hub.log,
	}
}

// ID returns the session identifier used for log correlation.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// SendQueue returns the session's outbound queue for reading delivered
// frames. Read-only from the caller's perspective.
func (c *Client) SendQueue() <-chan []byte {
	return c.send
}

// setupReadConnection configures the read deadline and pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error(fmt.Sprintf("Error setting initial read deadline for %s: %v", c.addr, err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Error(fmt.Sprintf("Error setting read deadline in pong handler for %s: %v", c.addr, err))
		}
		return nil
	})
}

// logReadError records why the read loop is ending. Close frames and dropped
// transports are normal session endings, not server faults.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warning(fmt.Sprintf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info(fmt.Sprintf("Session %s from %s disconnected: %v", c.id, c.addr, err))
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Info(fmt.Sprintf("Session %s connection closed: %v", c.id, err))
	default:
		c.log.Error(fmt.Sprintf("WebSocket read error from %s: %v", c.addr, err))
	}
}

// readPump is the session loop: it blocks on the next inbound frame, forwards
// text frames to the broadcast engine, and tears the session down on close or
// transport error. A failure here is fatal to this session only.
func (c *Client) readPump() {
	defer func() {
		c.hub.EndSession(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Error(fmt.Sprintf("Error closing connection in read pump: %v", err))
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			break
		}

		if c.limiter != nil && !c.limiter.allow() {
			c.log.Warning(fmt.Sprintf("Rate limit exceeded for %s (%d messages per %s); discarding message",
				c.addr, c.rate.Burst, c.rate.RefillInterval))
			continue
		}

		if err := c.hub.Publish(c, raw); err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				// Malformed frame: dropped, the session stays open.
				c.log.Warning(fmt.Sprintf("Invalid message from %s: %v", c.addr, parseErr.Err))
			}
			// A *PersistError was already logged by the hub and the
			// broadcast went out; nothing left to do here.
		}
	}
}

// writePump drains the session's send queue onto the wire and keeps the
// connection alive with periodic pings. It exits when the queue is closed or
// a write fails, closing the connection on the way out.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Error(fmt.Sprintf("Error closing connection in write pump: %v", err))
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error(fmt.Sprintf("Error setting write deadline for %s: %v", c.addr, err))
				return
			}
			if !ok {
				// Queue closed by unregistration: best-effort normal
				// closure, then stop.
				if err := c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil && !isExpectedCloseError(err) {
					c.log.Error(fmt.Sprintf("Error writing close message to %s: %v", c.addr, err))
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Error(fmt.Sprintf("Error writing message to %s: %v", c.addr, err))
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error(fmt.Sprintf("Error setting write deadline for ping to %s: %v", c.addr, err))
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Error(fmt.Sprintf("Error writing ping message to %s: %v", c.addr, err))
				}
				return
			}
		}
	}
}
