// Package refresh owns the background data plane: it keeps the imagery
// and spacecraft location stores fresh, mirrors every successful fetch to
// the disk cache, and drives the orientation controller from the newest
// imagery record.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/diskcache"
	"github.com/papercircuit/l1-earth-visualizer/internal/epic"
	"github.com/papercircuit/l1-earth-visualizer/internal/metrics"
	"github.com/papercircuit/l1-earth-visualizer/internal/orient"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
)

// Config holds refresh loop settings loaded from environment variables.
type Config struct {
	Interval    time.Duration // time between fetch cycles (default: 5m)
	LookBack    time.Duration // location query window ending now (default: 24h)
	Spacecraft  []string      // spacecraft ids for the location feed
	EnableFetch bool          // false runs from disk cache only
}

// DefaultConfig returns the refresh defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		LookBack:    24 * time.Hour,
		Spacecraft:  []string{"dscovr", "ace", "wind"},
		EnableFetch: true,
	}
}

// Runner periodically fetches both upstream feeds and republishes the
// orientation. A failed fetch keeps the last good dataset in place; the
// stores are only ever replaced with a fully parsed result.
type Runner struct {
	cfg        Config
	epicFetch  *epic.Fetcher
	sscFetch   *sscweb.Fetcher
	epicStore  *epic.Store
	sscStore   *sscweb.Store
	epicCache  *diskcache.Cache
	sscCache   *diskcache.Cache
	controller *orient.Controller
	logger     *slog.Logger
}

// NewRunner wires the fetchers, stores, disk caches, and controller into a
// refresh loop. Either cache may be nil to disable disk mirroring.
func NewRunner(cfg Config, epicFetch *epic.Fetcher, sscFetch *sscweb.Fetcher,
	epicStore *epic.Store, sscStore *sscweb.Store,
	epicCache, sscCache *diskcache.Cache,
	controller *orient.Controller, logger *slog.Logger) *Runner {

	return &Runner{
		cfg:        cfg,
		epicFetch:  epicFetch,
		sscFetch:   sscFetch,
		epicStore:  epicStore,
		sscStore:   sscStore,
		epicCache:  epicCache,
		sscCache:   sscCache,
		controller: controller,
		logger:     logger,
	}
}

// WarmStart loads the newest cached payload for each feed into its store,
// then publishes an initial orientation so the server can answer requests
// before the first upstream fetch completes.
func (r *Runner) WarmStart() {
	if r.epicCache != nil {
		if data, ts, err := r.epicCache.LoadLatest(); err != nil {
			r.logger.Info("no imagery cache found, starting cold", "error", err)
		} else if records, err := epic.Parse(data, r.logger); err != nil {
			r.logger.Warn("failed to parse cached imagery data", "error", err)
		} else {
			r.epicStore.Set(&epic.Dataset{Source: "cache", FetchedAt: ts, Records: records})
			r.logger.Info("loaded imagery data from cache",
				"records", len(records), "cached_at", ts.Format(time.RFC3339))
		}
	}

	if r.sscCache != nil {
		if data, ts, err := r.sscCache.LoadLatest(); err != nil {
			r.logger.Info("no location cache found, starting cold", "error", err)
		} else if obs, err := sscweb.Parse(data, r.logger); err != nil {
			r.logger.Warn("failed to parse cached location data", "error", err)
		} else {
			r.sscStore.Set(&sscweb.Dataset{Source: "cache", FetchedAt: ts, Observations: obs})
			r.logger.Info("loaded location data from cache",
				"spacecraft", len(obs), "cached_at", ts.Format(time.RFC3339))
		}
	}

	r.orient(false)
}

// Start runs the refresh loop until ctx is cancelled. The first cycle runs
// immediately.
func (r *Runner) Start(ctx context.Context) {
	if !r.cfg.EnableFetch {
		r.logger.Info("upstream fetching disabled, serving cached data only")
		<-ctx.Done()
		return
	}

	r.cycle(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

// cycle fetches both feeds and republishes the orientation, animating
// when the imagery anchor moved.
func (r *Runner) cycle(ctx context.Context) {
	epicOK := r.refreshEPIC(ctx)
	r.refreshSSCWeb(ctx)
	r.orient(epicOK)
}

func (r *Runner) refreshEPIC(ctx context.Context) bool {
	r.epicStore.Lock()
	defer r.epicStore.Unlock()

	start := time.Now()
	data, err := r.epicFetch.FetchLatest(ctx)
	metrics.RecordFetch("epic", time.Since(start), err)
	if err != nil {
		r.logger.Warn("imagery fetch failed, keeping last dataset", "error", err)
		return false
	}

	records, err := epic.Parse(data, r.logger)
	if err != nil {
		r.logger.Warn("imagery parse failed, keeping last dataset", "error", err)
		return false
	}

	now := time.Now().UTC()
	r.epicStore.Set(&epic.Dataset{
		Source:    r.epicFetch.BaseURL(),
		FetchedAt: now,
		Records:   records,
	})
	metrics.SetDatasetAge("epic", 0)

	if r.epicCache != nil {
		if err := r.epicCache.Write(data, now); err != nil {
			r.logger.Warn("imagery cache write failed", "error", err)
		}
	}

	r.logger.Info("imagery data refreshed", "records", len(records))
	return true
}

func (r *Runner) refreshSSCWeb(ctx context.Context) {
	if len(r.cfg.Spacecraft) == 0 {
		return
	}

	r.sscStore.Lock()
	defer r.sscStore.Unlock()

	end := time.Now().UTC()
	begin := end.Add(-r.cfg.LookBack)

	start := time.Now()
	data, err := r.sscFetch.Fetch(ctx, r.cfg.Spacecraft, begin, end)
	metrics.RecordFetch("sscweb", time.Since(start), err)
	if err != nil {
		r.logger.Warn("location fetch failed, keeping last dataset", "error", err)
		return
	}

	obs, err := sscweb.Parse(data, r.logger)
	if err != nil {
		r.logger.Warn("location parse failed, keeping last dataset", "error", err)
		return
	}

	now := time.Now().UTC()
	r.sscStore.Set(&sscweb.Dataset{
		Source:       r.sscFetch.BaseURL(),
		FetchedAt:    now,
		Observations: obs,
	})
	metrics.SetDatasetAge("sscweb", 0)

	if r.sscCache != nil {
		if err := r.sscCache.Write(data, now); err != nil {
			r.logger.Warn("location cache write failed", "error", err)
		}
	}

	r.logger.Info("location data refreshed", "spacecraft", len(obs))
}

// orient republishes the controller state. When the imagery feed has a
// record the orientation anchors to its capture time and measured subsolar
// centroid; otherwise it falls back to the solar ephemeris at wall-clock
// now. animate is set on cycles where fresh imagery arrived, so a moved
// anchor glides instead of jumping.
func (r *Runner) orient(animate bool) {
	if rec, ok := r.epicStore.Get().Latest(); ok {
		r.controller.Apply(rec.Date, rec.Subsolar, animate)
		return
	}
	r.controller.ApplyTime(time.Now().UTC(), animate)
}

// Observations returns the latest spacecraft observations for snapshot
// building; it is the controller's PositionFunc.
func Observations(store *sscweb.Store) orient.PositionFunc {
	return func() []sscweb.Observation {
		ds := store.Get()
		if ds == nil {
			return nil
		}
		return ds.Observations
	}
}
