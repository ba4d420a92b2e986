// Package stream implements Server-Sent Events (SSE) streaming of
// orientation snapshots. Clients connect via GET /api/v1/stream/orientation
// and receive the current globe orientation whenever it changes.
//
// SSE message format:
//
//	data: {"type":"orientation","time":"...","state":"static","rotation":{...},...}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","stations":3,"spacecraft":["dscovr"],"data_age_seconds":120}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// timeout. Reconnecting clients receive a fresh metadata message on each
// connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/httputil"
	"github.com/papercircuit/l1-earth-visualizer/internal/metrics"
	"github.com/papercircuit/l1-earth-visualizer/internal/orient"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Trust X-Forwarded-For for client IPs.
}

// Handler manages SSE streaming connections over the snapshot store.
type Handler struct {
	store   *orient.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(store *orient.Store, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// HandleOrientation serves the SSE orientation stream.
// GET /api/v1/stream/orientation?interval=1
func (h *Handler) HandleOrientation(w http.ResponseWriter, r *http.Request) {
	interval := 1
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid interval parameter, must be 1-60"})
			return
		}
		interval = n
	}

	// Enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval", interval,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) to prevent thundering-herd
	// reconnection storms when the server restarts.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	// Metadata is the first message on every connection.
	var lastBuilt time.Time
	if snap := h.store.Get(); snap != nil {
		if err := c.sendJSON(metadataFor(snap)); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
		if err := c.sendJSON(orientationMessage{Type: "orientation", Snapshot: snap}); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
		lastBuilt = snap.BuiltAt
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			snap := h.store.Get()
			if snap == nil || snap.BuiltAt.Equal(lastBuilt) {
				continue
			}
			if err := c.sendJSON(orientationMessage{Type: "orientation", Snapshot: snap}); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			lastBuilt = snap.BuiltAt

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func metadataFor(snap *orient.Snapshot) metadataMessage {
	craft := make([]string, 0, len(snap.Spacecraft))
	for _, c := range snap.Spacecraft {
		craft = append(craft, c.Name)
	}
	meta := metadataMessage{
		Type:       "metadata",
		Stations:   len(snap.Stations),
		Spacecraft: craft,
		DataAge:    -1,
	}
	if !snap.DataTime.IsZero() {
		meta.DataAge = int(time.Since(snap.DataTime).Seconds())
	}
	return meta
}

// SSE message payload types.

type metadataMessage struct {
	Type       string   `json:"type"`
	Stations   int      `json:"stations"`
	Spacecraft []string `json:"spacecraft"`
	DataAge    int      `json:"data_age_seconds"`
}

type orientationMessage struct {
	Type string `json:"type"`
	*orient.Snapshot
}
