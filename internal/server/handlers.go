// Package server exposes the HTTP handlers: user registration, throttled
// login, WebSocket upgrades, and the health check.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"chatrelay/internal/auth"
	"chatrelay/internal/logging"
	"chatrelay/internal/store"
)

// App bundles the handlers' collaborators: configuration, logger, credential
// store, login throttle, and the broadcast hub.
type App struct {
	cfg      Config
	log      *logging.Logger
	store    *store.UserStore
	throttle *auth.Throttle
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	validate *validator.Validate
}

// NewApp wires the handlers together.
func NewApp(cfg Config, log *logging.Logger, userStore *store.UserStore, throttle *auth.Throttle, hub *Hub) *App {
	app := &App{
		cfg:      cfg,
		log:      log,
		store:    userStore,
		throttle: throttle,
		hub:      hub,
		origins:  newOriginPolicy(cfg.AllowedOrigins, log),
		validate: validator.New(),
	}
	app.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     app.origins.checkRequest,
	}
	return app
}

// credentialsRequest is the login and registration payload. Field names are
// part of the wire contract with existing frontends.
type credentialsRequest struct {
	Username string `json:"Username" validate:"required"`
	Password string `json:"Password" validate:"required"`
}

// decodeCredentials parses and validates the request body. Fields that are
// empty after trimming fail validation, before the store or the throttle is
// ever consulted.
func (a *App) decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
	return req, a.validate.Struct(req)
}

// RegisterHandler creates a new user record.
func (a *App) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	a.log.Info("New user registration attempt")

	req, err := a.decodeCredentials(r)
	if err != nil {
		a.log.Warning("Registration failed: username or password missing")
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	if err := a.store.Insert(req.Username, req.Password); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			a.log.Warning(fmt.Sprintf("Registration failed: user %s already exists", req.Username))
			http.Error(w, "A user with this name already exists", http.StatusBadRequest)
			return
		}
		a.log.Error(fmt.Sprintf("Registration failed for %s: %v", req.Username, err))
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	a.log.Info(fmt.Sprintf("User %s registered successfully", req.Username))
	fmt.Fprint(w, "Registration successful")
}

// LoginHandler authenticates a user through the login throttle. Responses
// reveal the remaining attempt count on rejection and the lockout expiry on
// lockout, never whether the account exists.
func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	a.log.Info("User login attempt")

	req, err := a.decodeCredentials(r)
	if err != nil {
		a.log.Warning("Login failed: username or password missing")
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	result := a.throttle.Attempt(req.Username, req.Password, a.store.Authenticate)
	switch result.Status {
	case auth.StatusLocked:
		until := result.LockedUntil.Local().Format("2006-01-02 15:04")
		a.log.Warning(fmt.Sprintf("Login failed: account %s locked until %s", req.Username, until))
		http.Error(w, fmt.Sprintf("Account locked until %s", until), http.StatusTooManyRequests)

	case auth.StatusLockedNow:
		until := result.LockedUntil.Local().Format("15:04")
		a.log.Warning(fmt.Sprintf("Account %s locked for %s until %s", req.Username, a.cfg.LockoutDuration, until))
		http.Error(w, fmt.Sprintf("Account locked for %s until %s", a.cfg.LockoutDuration, until), http.StatusTooManyRequests)

	case auth.StatusRejected:
		a.log.Warning(fmt.Sprintf("Login failed for %s: invalid credentials. %d attempts remaining", req.Username, result.Remaining))
		http.Error(w, fmt.Sprintf("Invalid username or password. Attempts remaining: %d", result.Remaining), http.StatusUnauthorized)

	case auth.StatusAccepted:
		a.log.Info(fmt.Sprintf("User %s logged in successfully", result.Identity.Username))
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result.Identity); err != nil {
			a.log.Error(fmt.Sprintf("Error writing login response: %v", err))
		}
	}
}

// WebSocketHandler upgrades the connection and hands it to the hub. Requests
// that are not genuine WebSocket upgrades are rejected without ever entering
// the session lifecycle.
func (a *App) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		a.log.Warning("Rejected non-WebSocket request on /ws")
		http.Error(w, "WebSocket upgrade required", http.StatusBadRequest)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the client error status.
		a.log.Warning(fmt.Sprintf("WebSocket upgrade failed: %v", err))
		return
	}

	a.log.Info(fmt.Sprintf("New WebSocket connection from %s", r.RemoteAddr))
	a.hub.StartSession(NewClient(conn, a.hub, r.RemoteAddr))
}

// HealthHandler reports that the server is up.
func (a *App) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "Chat relay server is running!")
}
