// Package health provides liveness and readiness endpoints.
package health

import (
	"net/http"
	"sync/atomic"
)

var ready atomic.Bool

// SetReady flips the readiness flag. Readyz reports 503 until the first
// orientation snapshot has been published.
func SetReady(v bool) {
	ready.Store(v)
}

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns 200 "ready\n" once an orientation is available, 503
// before that.
func Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
