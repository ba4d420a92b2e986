package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/papercircuit/l1-earth-visualizer/internal/httputil"
	"github.com/papercircuit/l1-earth-visualizer/internal/metrics"
)

// RateLimitConfig holds per-IP request limiting settings.
type RateLimitConfig struct {
	Enabled    bool
	PerSecond  float64 // sustained requests per second per IP
	Burst      int     // bucket size
	TrustProxy bool
}

// ipRateLimiter hands out one token bucket per client IP.
type ipRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*rate.Limiter
	r   rate.Limit
	b   int
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	return &ipRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

func (l *ipRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.ips[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.ips[ip] = lim
	}
	return lim
}

// rateLimitMiddleware rejects requests over the per-IP budget with 429.
// Probe and metrics paths are never limited. The SSE stream has its own
// concurrent-connection limiter and is exempt here.
func rateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	limiter := newIPRateLimiter(rate.Limit(cfg.PerSecond), cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || rateLimitExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := httputil.ClientIP(r, cfg.TrustProxy)
			if !limiter.limiter(ip).Allow() {
				metrics.IncRateLimited()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitExempt(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/v1/stream/orientation":
		return true
	}
	return false
}
