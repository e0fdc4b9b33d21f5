// Package server normalizes and validates HTTP origins for WebSocket upgrades
// and cross-origin requests against the configured allowlist.
package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"chatrelay/internal/logging"
)

// originPolicy holds the normalized origin allowlist. Built once from the
// configuration, then read-only.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *logging.Logger
}

func newOriginPolicy(origins []string, log *logging.Logger) *originPolicy {
	p := &originPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		log:     log,
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warning(fmt.Sprintf("Ignoring invalid origin in configuration: %q", origin))
			continue
		}
		p.allowed[normalized] = struct{}{}
	}

	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (p *originPolicy) allow(origin string) bool {
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, exists := p.allowed[normalized]
	return exists
}

// checkRequest is the upgrader's origin check. Requests without an Origin
// header are rejected.
func (p *originPolicy) checkRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin != "" && p.allow(origin) {
		return true
	}
	p.log.Warning(fmt.Sprintf("Blocked WebSocket connection from disallowed origin: %q", origin))
	return false
}

// cors grants allowed origins cross-origin access to the login and
// registration endpoints and short-circuits preflight requests.
func (p *originPolicy) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && p.allow(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
