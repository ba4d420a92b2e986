// Package api wires the HTTP surface: health probes, metrics, the
// orientation and projection endpoints, the SSE stream, and the embedded
// frontend, behind a metrics → logging → rate-limit → auth middleware
// chain.
package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/auth"
	"github.com/papercircuit/l1-earth-visualizer/internal/epic"
	"github.com/papercircuit/l1-earth-visualizer/internal/health"
	"github.com/papercircuit/l1-earth-visualizer/internal/metrics"
	"github.com/papercircuit/l1-earth-visualizer/internal/orient"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
	"github.com/papercircuit/l1-earth-visualizer/internal/station"
	"github.com/papercircuit/l1-earth-visualizer/internal/stream"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	controller *orient.Controller
	stations   []station.Station
	epicStore  *epic.Store
	sscStore   *sscweb.Store
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, rlCfg RateLimitConfig,
	controller *orient.Controller, stations []station.Station,
	epicStore *epic.Store, sscStore *sscweb.Store,
	streamHandler *stream.Handler, webContent fs.FS) *Server {

	s := &Server{
		logger:     logger,
		controller: controller,
		stations:   stations,
		epicStore:  epicStore,
		sscStore:   sscStore,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/orientation", s.handleOrientation)
	mux.HandleFunc("POST /api/v1/orientation", s.handleSetOrientation)
	mux.HandleFunc("GET /api/v1/orientation/at", s.handleOrientationAt)
	mux.HandleFunc("GET /api/v1/stations", s.handleStations)
	mux.HandleFunc("GET /api/v1/imagery", s.handleImagery)
	mux.HandleFunc("GET /api/v1/spacecraft", s.handleSpacecraft)
	mux.HandleFunc("GET /api/v1/projection", s.handleProjection)
	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/orientation", streamHandler.HandleOrientation)
	}
	if webContent != nil {
		mux.Handle("GET /", http.FileServerFS(webContent))
	}

	// Build middleware chain: metrics -> logging -> rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = rateLimitMiddleware(rlCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE streaming keeps working
// behind the middleware chain.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
