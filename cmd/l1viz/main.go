package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/api"
	"github.com/papercircuit/l1-earth-visualizer/internal/auth"
	"github.com/papercircuit/l1-earth-visualizer/internal/diskcache"
	"github.com/papercircuit/l1-earth-visualizer/internal/epic"
	"github.com/papercircuit/l1-earth-visualizer/internal/health"
	"github.com/papercircuit/l1-earth-visualizer/internal/metrics"
	"github.com/papercircuit/l1-earth-visualizer/internal/orient"
	"github.com/papercircuit/l1-earth-visualizer/internal/refresh"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
	"github.com/papercircuit/l1-earth-visualizer/internal/station"
	"github.com/papercircuit/l1-earth-visualizer/internal/stream"
	"github.com/papercircuit/l1-earth-visualizer/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("L1VIZ_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	stations, err := loadStations(logger)
	if err != nil {
		logger.Error("invalid station catalog", "error", err)
		os.Exit(1)
	}

	refreshCfg := loadRefreshConfig(logger)
	cacheDir := os.Getenv("L1VIZ_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "/tmp/l1viz"
	}
	maxFiles := 5
	if v := os.Getenv("L1VIZ_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid L1VIZ_CACHE_MAX_FILES value, using default", "value", v, "default", maxFiles)
		} else {
			maxFiles = n
		}
	}
	epicCache := diskcache.New(cacheDir, "epic", maxFiles)
	sscCache := diskcache.New(cacheDir, "sscweb", maxFiles)

	epicStore := epic.NewStore()
	sscStore := sscweb.NewStore()

	controller := orient.NewController(loadOrientConfig(logger), stations,
		refresh.Observations(sscStore), logger)
	defer controller.Close()

	runner := refresh.NewRunner(refreshCfg,
		epic.NewFetcher(os.Getenv("L1VIZ_EPIC_URL")),
		sscweb.NewFetcher(os.Getenv("L1VIZ_SSCWEB_URL")),
		epicStore, sscStore, epicCache, sscCache, controller, logger)

	// Warm start publishes an orientation from cache or the local
	// ephemeris, so the server is answerable before the first fetch.
	runner.WarmStart()
	health.SetReady(controller.Snapshot() != nil)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(controller.Store(), streamCfg, logger)

	rlCfg := loadRateLimitConfig(logger)

	srv := api.NewServer(addr, logger, authCfg, rlCfg, controller, stations,
		epicStore, sscStore, streamHandler, web.Content)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background refresh loop.
	go runner.Start(ctx)

	// Background goroutine to update dataset age gauges.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := epicStore.AgeSeconds(); age >= 0 {
					metrics.SetDatasetAge("epic", age)
				}
				if age := sscStore.AgeSeconds(); age >= 0 {
					metrics.SetDatasetAge("sscweb", age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"fetch_enabled", refreshCfg.EnableFetch,
			"spacecraft", strings.Join(refreshCfg.Spacecraft, ","),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("L1VIZ_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("L1VIZ_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("L1VIZ_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("L1VIZ_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadStations(logger *slog.Logger) ([]station.Station, error) {
	path := os.Getenv("L1VIZ_STATIONS_FILE")
	if path == "" {
		stations := station.Defaults()
		logger.Info("using built-in station catalog", "count", len(stations))
		return stations, nil
	}

	stations, err := station.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded station catalog", "path", path, "count", len(stations))
	return stations, nil
}

func loadOrientConfig(logger *slog.Logger) orient.Config {
	cfg := orient.DefaultConfig()

	if v := os.Getenv("L1VIZ_TRANSITION_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid L1VIZ_TRANSITION_MS value, using default", "value", v, "default", 1500)
		} else {
			cfg.TransitionDuration = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("L1VIZ_TRANSITION_STEP_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid L1VIZ_TRANSITION_STEP_MS value, using default", "value", v, "default", 50)
		} else {
			cfg.TransitionStep = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("L1VIZ_DEBOUNCE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid L1VIZ_DEBOUNCE_MS value, using default", "value", v, "default", 250)
		} else {
			cfg.Debounce = time.Duration(n) * time.Millisecond
		}
	}

	logger.Info("orientation config",
		"transition_ms", cfg.TransitionDuration.Milliseconds(),
		"step_ms", cfg.TransitionStep.Milliseconds(),
		"debounce_ms", cfg.Debounce.Milliseconds(),
	)

	return cfg
}

func loadRefreshConfig(logger *slog.Logger) refresh.Config {
	cfg := refresh.DefaultConfig()

	if v := os.Getenv("L1VIZ_ENABLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid L1VIZ_ENABLE_FETCH value, defaulting to true", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("L1VIZ_REFRESH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 10 {
			logger.Warn("invalid L1VIZ_REFRESH_INTERVAL value, using default", "value", v, "default", 300)
		} else {
			cfg.Interval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("L1VIZ_LOOKBACK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 60 {
			logger.Warn("invalid L1VIZ_LOOKBACK value, using default", "value", v, "default", 86400)
		} else {
			cfg.LookBack = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("L1VIZ_SPACECRAFT"); v != "" {
		var craft []string
		for _, c := range strings.Split(v, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				craft = append(craft, c)
			}
		}
		cfg.Spacecraft = craft
	}

	logger.Info("refresh config",
		"interval_seconds", cfg.Interval.Seconds(),
		"lookback_seconds", cfg.LookBack.Seconds(),
		"spacecraft", strings.Join(cfg.Spacecraft, ","),
		"fetch_enabled", cfg.EnableFetch,
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("L1VIZ_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid L1VIZ_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("L1VIZ_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid L1VIZ_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("L1VIZ_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid L1VIZ_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadRateLimitConfig(logger *slog.Logger) api.RateLimitConfig {
	cfg := api.RateLimitConfig{
		Enabled:   true,
		PerSecond: 20,
		Burst:     40,
	}

	if v := os.Getenv("L1VIZ_RATE_LIMIT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid L1VIZ_RATE_LIMIT_ENABLED value, defaulting to true", "value", v)
		} else {
			cfg.Enabled = enabled
		}
	}

	if v := os.Getenv("L1VIZ_RATE_LIMIT"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			logger.Warn("invalid L1VIZ_RATE_LIMIT value, using default", "value", v, "default", cfg.PerSecond)
		} else {
			cfg.PerSecond = n
		}
	}

	if v := os.Getenv("L1VIZ_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid L1VIZ_RATE_LIMIT_BURST value, using default", "value", v, "default", cfg.Burst)
		} else {
			cfg.Burst = n
		}
	}

	if v := os.Getenv("L1VIZ_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err == nil {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("rate limit config",
		"enabled", cfg.Enabled,
		"per_second", cfg.PerSecond,
		"burst", cfg.Burst,
	)

	return cfg
}
