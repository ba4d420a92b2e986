package metrics

import "testing"

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/orientation", "/api/v1/orientation"},
		{"/api/v1/orientation/at", "/api/v1/orientation/at"},
		{"/api/v1/stations", "/api/v1/stations"},
		{"/api/v1/spacecraft", "/api/v1/spacecraft"},
		{"/api/v1/projection", "/api/v1/projection"},
		{"/api/v1/stream/orientation", "/api/v1/stream/orientation"},

		// Frontend assets collapse to one label.
		{"/app.js", "asset"},
		{"/styles.css", "asset"},
		{"/index.html", "asset"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that arbitrary unknown paths produce a
// single label, not one per path.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/scan/" + string(rune('a'+i%26)) + string(rune('a'+i/26)))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for unknown paths, got %d: %v", len(seen), seen)
	}
}
