package stream

import "sync"

// globalStreamCap bounds total concurrent SSE connections across all IPs,
// independent of the per-IP limit.
const globalStreamCap = 1000

// streamLimiter tracks concurrent SSE connections per IP and globally.
// This is a concurrency cap, not a token bucket: a slot is held for the
// lifetime of the connection and released on disconnect.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// acquire attempts to register a new connection for the given IP.
// Returns false if the IP or global limit has been reached.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= globalStreamCap {
		return false
	}
	if l.perIP[ip] >= l.maxPerIP {
		return false
	}

	l.perIP[ip]++
	l.total++
	return true
}

// release decrements the connection count for the given IP.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.perIP[ip]--
	l.total--
	if l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

// count returns the number of active connections for the given IP.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}
