// Package server wires the HTTP handlers into the application router.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns the router with all application routes.
// OPTIONS is routed on the credential endpoints so the CORS middleware can
// answer preflight requests.
func (a *App) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.origins.cors)
	r.HandleFunc("/", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/register", a.RegisterHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/login", a.LoginHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws", a.WebSocketHandler).Methods(http.MethodGet)
	return r
}
