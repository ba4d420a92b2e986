package httputil

import (
	"net/http"
	"testing"
)

func request(remoteAddr, xff, xri string) *http.Request {
	r := &http.Request{RemoteAddr: remoteAddr, Header: http.Header{}}
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	if xri != "" {
		r.Header.Set("X-Real-IP", xri)
	}
	return r
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "ipv6 with port", remoteAddr: "[::1]:12345", want: "::1"},
		{name: "bare address passes through", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{
			name:       "headers ignored without trust",
			remoteAddr: "10.0.0.1:1234",
			xff:        "1.2.3.4",
			xri:        "5.6.7.8",
			want:       "10.0.0.1",
		},
		{
			name:       "trusted forwarded chain wins",
			remoteAddr: "10.0.0.1:1234",
			xff:        "1.2.3.4, 10.0.0.1, 10.0.0.2",
			xri:        "5.6.7.8",
			trustProxy: true,
			want:       "1.2.3.4",
		},
		{
			name:       "trusted real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			xri:        "5.6.7.8",
			trustProxy: true,
			want:       "5.6.7.8",
		},
		{
			name:       "trusted but no headers uses remote addr",
			remoteAddr: "10.0.0.1:1234",
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClientIP(request(tt.remoteAddr, tt.xff, tt.xri), tt.trustProxy)
			if got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

// forwardedIP is where the header parsing lives; pin its edge cases
// directly so a refactor of ClientIP cannot silently change them.
func TestForwardedIP(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		xri  string
		want string
	}{
		{name: "no headers", want: ""},
		{name: "single entry", xff: "1.2.3.4", want: "1.2.3.4"},
		{name: "leftmost of chain", xff: "1.2.3.4,10.0.0.1", want: "1.2.3.4"},
		{name: "whitespace trimmed", xff: " 1.2.3.4 , 10.0.0.1", want: "1.2.3.4"},
		{name: "forwarded beats real-ip", xff: "1.2.3.4", xri: "5.6.7.8", want: "1.2.3.4"},
		{name: "empty forwarded falls to real-ip", xff: "  ", xri: "5.6.7.8", want: "5.6.7.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := forwardedIP(request("10.0.0.1:1234", tt.xff, tt.xri))
			if got != tt.want {
				t.Errorf("forwardedIP = %q, want %q", got, tt.want)
			}
		})
	}
}
