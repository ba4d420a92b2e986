// Package httputil holds small HTTP helpers shared by the API and the
// stream handler.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client IP address from the request. Both the
// per-IP request limiter and the stream connection limiter key on it.
// When trustProxy is true the X-Forwarded-For (leftmost entry) and
// X-Real-IP headers are consulted before RemoteAddr; only enable that
// behind a reverse proxy that strips client-supplied values, since the
// headers are trivially spoofable otherwise.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func forwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}
