package orient

import (
	"log/slog"
	"sync"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
	"github.com/papercircuit/l1-earth-visualizer/internal/metrics"
	"github.com/papercircuit/l1-earth-visualizer/internal/solar"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
	"github.com/papercircuit/l1-earth-visualizer/internal/station"
)

// Config holds controller tuning loaded from environment variables.
type Config struct {
	TransitionDuration time.Duration // animated rotation window (default: 1500ms)
	TransitionStep     time.Duration // interpolation step (default: 50ms)
	Debounce           time.Duration // quiet period for coalesced requests (default: 250ms)
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		TransitionDuration: 1500 * time.Millisecond,
		TransitionStep:     50 * time.Millisecond,
		Debounce:           250 * time.Millisecond,
	}
}

// PositionFunc supplies the latest spacecraft observations for a
// computation cycle. It must be safe for concurrent use.
type PositionFunc func() []sscweb.Observation

// Controller owns the globe rotation. It is either Static (fixed at the
// last computed rotation) or Transitioning (interpolating toward a new
// target). Any timestamp change recomputes the target subsolar point;
// animated changes interpolate the rotation over a fixed wall-clock window,
// re-deriving all visibility flags at every step so the rendering and the
// flags never disagree mid-flight.
type Controller struct {
	cfg       Config
	stations  []station.Station
	positions PositionFunc
	store     *Store
	debounce  *Debouncer
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	rot   Rotation
	gen   uint64 // bumped on every apply; stale transitions check it and stop
	seen  bool   // false until the first apply
}

// NewController creates a controller over a fixed station catalog.
// positions may be nil when no location feed is configured.
func NewController(cfg Config, stations []station.Station, positions PositionFunc, logger *slog.Logger) *Controller {
	if cfg.TransitionStep <= 0 {
		cfg.TransitionStep = 50 * time.Millisecond
	}
	if positions == nil {
		positions = func() []sscweb.Observation { return nil }
	}
	return &Controller{
		cfg:       cfg,
		stations:  stations,
		positions: positions,
		store:     NewStore(),
		debounce:  NewDebouncer(cfg.Debounce),
		logger:    logger,
		state:     StateStatic,
	}
}

// Store returns the snapshot store consumers read from.
func (c *Controller) Store() *Store {
	return c.store
}

// Snapshot returns the current snapshot, nil before the first computation.
func (c *Controller) Snapshot() *Snapshot {
	return c.store.Get()
}

// ApplyTime recomputes the orientation for time t using the local solar
// ephemeris.
func (c *Controller) ApplyTime(t time.Time, animate bool) {
	c.Apply(t, solar.SubsolarPoint(t), animate)
}

// Request is the debounced entry point for bursty callers (a user dragging
// a time slider). Only the trailing request after the quiet period runs.
func (c *Controller) Request(t time.Time, animate bool) {
	c.debounce.Trigger(func() {
		c.ApplyTime(t, animate)
	})
}

// Close stops any pending debounced request.
func (c *Controller) Close() {
	c.debounce.Stop()
}

// Apply recomputes the orientation for time t with an externally supplied
// subsolar point (the imagery feed's centroid when anchoring to a real
// image). With animate set and a previous rotation on screen, the change
// is interpolated; otherwise it lands immediately.
func (c *Controller) Apply(t time.Time, subsolar geo.Point, animate bool) {
	target := RotationFor(subsolar)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	from := c.rot
	animate = animate && c.seen && c.cfg.TransitionDuration > 0
	if !animate {
		c.rot = target
		c.state = StateStatic
		c.seen = true
	} else {
		c.state = StateTransitioning
	}
	c.mu.Unlock()

	if !animate {
		c.publish(t, subsolar, target, StateStatic)
		return
	}

	c.logger.Debug("orientation transition start",
		"target_lambda", target.Lambda,
		"target_phi", target.Phi,
		"duration_ms", c.cfg.TransitionDuration.Milliseconds(),
	)
	go c.runTransition(gen, t, subsolar, from, target)
}

// runTransition interpolates the rotation toward target, publishing a
// fully re-derived snapshot at every step. A newer Apply supersedes this
// transition; it notices via the generation counter and stops quietly.
func (c *Controller) runTransition(gen uint64, t time.Time, subsolar geo.Point, from, target Rotation) {
	start := time.Now()
	ticker := time.NewTicker(c.cfg.TransitionStep)
	defer ticker.Stop()

	for now := range ticker.C {
		frac := float64(now.Sub(start)) / float64(c.cfg.TransitionDuration)
		done := frac >= 1
		rot := lerp(from, target, frac)

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.rot = rot
		if done {
			c.state = StateStatic
			c.seen = true
		}
		c.mu.Unlock()

		if done {
			c.publish(t, subsolar, target, StateStatic)
			return
		}
		c.publish(t, subsolar, rot, StateTransitioning)
	}
}

// publish builds and swaps in a snapshot for the given rotation.
func (c *Controller) publish(t time.Time, subsolar geo.Point, rot Rotation, state State) {
	start := time.Now()
	snap := BuildSnapshot(t, subsolar, rot, state, c.stations, c.positions())
	c.store.Set(snap)
	metrics.RecordSnapshotBuild(time.Since(start), snap.VisibleStationCount())
}
