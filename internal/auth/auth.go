// Package auth provides optional Bearer token authentication for the
// data-heavy API endpoints while leaving probes, metrics, the embedded
// frontend, and every endpoint the frontend consumes open.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration: probes,
// metrics, the embedded frontend assets, and every endpoint the frontend
// consumes. Locking any of these down would break the public UI the moment
// auth is enabled.
var exemptPaths = map[string]bool{
	"/healthz":                   true,
	"/readyz":                    true,
	"/metrics":                   true,
	"/app.js":                    true,
	"/styles.css":                true,
	"/api/v1/orientation":        true,
	"/api/v1/stations":           true,
	"/api/v1/projection":         true,
	"/api/v1/stream/orientation": true,
}

// isExempt returns true if the path is exempt from auth.
func isExempt(path string) bool {
	return path == "/" || exemptPaths[path]
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")

			if header == "" || token == header || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
