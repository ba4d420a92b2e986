package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/auth"
	"github.com/papercircuit/l1-earth-visualizer/internal/epic"
	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
	"github.com/papercircuit/l1-earth-visualizer/internal/health"
	"github.com/papercircuit/l1-earth-visualizer/internal/orient"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
	"github.com/papercircuit/l1-earth-visualizer/internal/station"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testServer(t *testing.T, authCfg auth.Config, rlCfg RateLimitConfig) (*Server, *orient.Controller, *epic.Store) {
	t.Helper()
	epicStore := epic.NewStore()
	sscStore := sscweb.NewStore()
	sscStore.Set(&sscweb.Dataset{
		Source:    "test",
		FetchedAt: time.Now(),
		Observations: []sscweb.Observation{
			{Spacecraft: "dscovr", Time: time.Date(2024, 3, 20, 11, 0, 0, 0, time.UTC),
				Position: geo.Vec3{X: 1.4e6, Y: -1.2e4, Z: 1.8e5}},
		},
	})

	positions := func() []sscweb.Observation { return sscStore.Get().Observations }
	ctrl := orient.NewController(orient.DefaultConfig(), station.Defaults(), positions, testLogger())
	t.Cleanup(ctrl.Close)

	srv := NewServer(":0", testLogger(), authCfg, rlCfg, ctrl, station.Defaults(), epicStore, sscStore, nil, nil)
	return srv, ctrl, epicStore
}

func TestOrientationBeforeFirstCompute(t *testing.T) {
	srv, _, _ := testServer(t, auth.Config{}, RateLimitConfig{})

	req := httptest.NewRequest("GET", "/api/v1/orientation", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestOrientationAfterCompute(t *testing.T) {
	srv, ctrl, _ := testServer(t, auth.Config{}, RateLimitConfig{})
	ctrl.ApplyTime(time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC), false)

	req := httptest.NewRequest("GET", "/api/v1/orientation", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var snap orient.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.State != orient.StateStatic {
		t.Errorf("state = %q, want static", snap.State)
	}
	if len(snap.Stations) != 3 {
		t.Errorf("stations = %d, want 3", len(snap.Stations))
	}
	// Near the March equinox at 12:00 UT the globe centers near (0, 0).
	if snap.Rotation.Lambda > 10 || snap.Rotation.Lambda < -10 {
		t.Errorf("rotation lambda = %v, want near 0", snap.Rotation.Lambda)
	}
}

func TestOrientationAt(t *testing.T) {
	srv, _, _ := testServer(t, auth.Config{}, RateLimitConfig{})

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"valid", "?time=2024-03-20T12:00:00Z", http.StatusOK},
		{"missing time", "", http.StatusBadRequest},
		{"bad time", "?time=yesterday", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/orientation/at"+tt.query, nil)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// TestOrientationAtIsPure verifies the on-demand query does not disturb the
// controller's published snapshot.
func TestOrientationAtIsPure(t *testing.T) {
	srv, ctrl, _ := testServer(t, auth.Config{}, RateLimitConfig{})
	ctrl.ApplyTime(time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC), false)
	before := ctrl.Snapshot()

	req := httptest.NewRequest("GET", "/api/v1/orientation/at?time=2024-06-20T12:00:00Z", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ctrl.Snapshot() != before {
		t.Error("on-demand query replaced the published snapshot")
	}
}

func TestSetOrientation(t *testing.T) {
	srv, ctrl, _ := testServer(t, auth.Config{}, RateLimitConfig{})

	body := `{"time":"2024-03-20T12:00:00Z","animate":false}`
	req := httptest.NewRequest("POST", "/api/v1/orientation", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	// DefaultConfig debounces for 250ms before the request lands.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && ctrl.Snapshot() == nil {
		time.Sleep(10 * time.Millisecond)
	}
	if ctrl.Snapshot() == nil {
		t.Fatal("posted orientation never applied")
	}
}

func TestSetOrientationBadBody(t *testing.T) {
	srv, _, _ := testServer(t, auth.Config{}, RateLimitConfig{})

	for _, body := range []string{"", "{", `{"time":"noon"}`} {
		req := httptest.NewRequest("POST", "/api/v1/orientation", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestStations(t *testing.T) {
	srv, _, _ := testServer(t, auth.Config{}, RateLimitConfig{})

	req := httptest.NewRequest("GET", "/api/v1/stations", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Stations []station.Station `json:"stations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Stations) != 3 {
		t.Errorf("stations = %d, want 3", len(resp.Stations))
	}
}

func TestSpacecraft(t *testing.T) {
	srv, _, _ := testServer(t, auth.Config{}, RateLimitConfig{})

	req := httptest.NewRequest("GET", "/api/v1/spacecraft", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp spacecraftResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Observations) != 1 || resp.Observations[0].Name != "dscovr" {
		t.Errorf("observations = %+v", resp.Observations)
	}
	if resp.Observations[0].DistanceKm < 1e6 {
		t.Errorf("distance = %v km, want L1-scale distance", resp.Observations[0].DistanceKm)
	}
}

func TestImagery(t *testing.T) {
	srv, _, epicStore := testServer(t, auth.Config{}, RateLimitConfig{})

	req := httptest.NewRequest("GET", "/api/v1/imagery", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status before data = %d, want 503", w.Code)
	}

	epicStore.Set(&epic.Dataset{
		Source:    "test",
		FetchedAt: time.Now(),
		Records: []epic.Record{
			{Identifier: "20240320115936", Image: "epic_1b_20240320115936",
				Date:     time.Date(2024, 3, 20, 11, 59, 36, 0, time.UTC),
				Subsolar: geo.Point{Lat: 0.15, Lon: 1.84}},
		},
	})

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/imagery", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp imageryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Identifier != "20240320115936" {
		t.Errorf("records = %+v", resp.Records)
	}
}

func TestProjection(t *testing.T) {
	srv, ctrl, _ := testServer(t, auth.Config{}, RateLimitConfig{})
	ctrl.ApplyTime(time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC), false)

	req := httptest.NewRequest("GET", "/api/v1/projection?width=600&height=400", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp projectionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Width != 600 || resp.Height != 400 {
		t.Errorf("viewport = %dx%d", resp.Width, resp.Height)
	}
	if resp.Radius != 190 {
		t.Errorf("radius = %v, want 190", resp.Radius)
	}
	if len(resp.Stations) != 3 {
		t.Errorf("stations = %d, want 3", len(resp.Stations))
	}
	// The subsolar point is at the projection center, so it must project.
	if !resp.Subsolar.Visible {
		t.Error("subsolar point should be visible at its own rotation")
	}
	// Roughly half of the terminator circle faces the viewer.
	if len(resp.Terminator) < 36 {
		t.Errorf("terminator samples = %d, want at least a near-hemisphere arc", len(resp.Terminator))
	}
	for _, p := range resp.Terminator {
		dx, dy := p[0]-resp.CenterX, p[1]-resp.CenterY
		if dist := dx*dx + dy*dy; dist > resp.Radius*resp.Radius*1.01 {
			t.Errorf("terminator point %v outside the globe disc", p)
		}
	}
}

func TestProjectionBadParams(t *testing.T) {
	srv, ctrl, _ := testServer(t, auth.Config{}, RateLimitConfig{})
	ctrl.ApplyTime(time.Now(), false)

	for _, q := range []string{"?width=10", "?height=9999", "?width=abc", "?time=noon"} {
		req := httptest.NewRequest("GET", "/api/v1/projection"+q, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", q, w.Code)
		}
	}
}

func TestReadyz(t *testing.T) {
	srv, _, _ := testServer(t, auth.Config{}, RateLimitConfig{})

	health.SetReady(false)
	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status before ready = %d, want 503", w.Code)
	}

	health.SetReady(true)
	defer health.SetReady(false)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status after ready = %d, want 200", w.Code)
	}
}

func TestAuthEnforced(t *testing.T) {
	srv, ctrl, _ := testServer(t, auth.Config{Enabled: true, Token: "sekrit"}, RateLimitConfig{})
	ctrl.ApplyTime(time.Now(), false)

	// The frontend and everything it calls stay open with auth enabled.
	for _, path := range []string{
		"/",
		"/app.js",
		"/styles.css",
		"/api/v1/orientation",
		"/api/v1/projection",
	} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code == http.StatusUnauthorized {
			t.Errorf("GET %s returned 401 with auth enabled; frontend surface must stay open", path)
		}
	}

	// Non-exempt path requires the token.
	req := httptest.NewRequest("GET", "/api/v1/spacecraft", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/spacecraft", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Errorf("authenticated request still rejected with 401")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	srv, ctrl, _ := testServer(t, auth.Config{},
		RateLimitConfig{Enabled: true, PerSecond: 1, Burst: 2})
	ctrl.ApplyTime(time.Now(), false)

	var limited bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/v1/orientation", nil)
		req.RemoteAddr = "10.1.2.3:4444"
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			if w.Header().Get("Retry-After") == "" {
				t.Error("429 missing Retry-After header")
			}
		}
	}
	if !limited {
		t.Error("burst of 5 never hit the 2-token bucket")
	}

	// Probe paths are never limited.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.RemoteAddr = "10.1.2.3:4444"
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			t.Fatal("health probe was rate limited")
		}
	}
}
