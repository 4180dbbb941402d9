package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/launchlab/shotcore/internal/lifecycle"
)

// #region types
// Config is the full runtime configuration.
type Config struct {
	LogLevel  string           `yaml:"log_level"`
	Engine    EngineConfig     `yaml:"engine"`
	Store     StoreConfig      `yaml:"store"`
	HUD       HUDConfig        `yaml:"hud"`
	Redis     RedisConfig      `yaml:"redis"`
	Lifecycle lifecycle.Config `yaml:"lifecycle"`
}

// EngineConfig sizes the frame queue, telemetry ring and timers.
type EngineConfig struct {
	QueueDepth    int           `yaml:"queue_depth"`
	RingCapacity  int           `yaml:"ring_capacity"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// StoreConfig locates the session database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// HUDConfig holds the live HUD listen addresses. Empty disables a transport.
type HUDConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	WSAddr   string `yaml:"ws_addr"`
}

// RedisConfig configures outcome publishing. Empty Addr disables it.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Channel   string `yaml:"channel"`
	KeyPrefix string `yaml:"key_prefix"`
}
// #endregion types

// #region defaults
// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Engine: EngineConfig{
			QueueDepth:    256,
			RingCapacity:  4096,
			TickInterval:  250 * time.Millisecond,
			FlushInterval: 2 * time.Second,
		},
		Store: StoreConfig{Path: "shotcore.db"},
		HUD: HUDConfig{
			GRPCAddr: "localhost:50061",
			WSAddr:   "localhost:8088",
		},
		Redis: RedisConfig{
			Channel:   "shotcore:decisions",
			KeyPrefix: "shotcore",
		},
		Lifecycle: lifecycle.DefaultConfig(),
	}
}
// #endregion defaults

// #region load
// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) error {
	cfg.Store.Path = envOr("SHOTCORE_DB", cfg.Store.Path)
	cfg.HUD.GRPCAddr = envOr("SHOTCORE_GRPC_ADDR", cfg.HUD.GRPCAddr)
	cfg.HUD.WSAddr = envOr("SHOTCORE_WS_ADDR", cfg.HUD.WSAddr)
	cfg.Redis.Addr = envOr("SHOTCORE_REDIS_ADDR", cfg.Redis.Addr)
	cfg.LogLevel = envOr("SHOTCORE_LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("SHOTCORE_DEADMAN"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SHOTCORE_DEADMAN: %w", err)
		}
		cfg.Lifecycle.DeadmanSeconds = secs
	}
	return nil
}
// #endregion load

// #region validate
// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	lc := c.Lifecycle
	check(c.Engine.QueueDepth > 0, "engine.queue_depth must be positive, got %d", c.Engine.QueueDepth)
	check(c.Engine.RingCapacity > 0, "engine.ring_capacity must be positive, got %d", c.Engine.RingCapacity)
	check(c.Engine.TickInterval > 0, "engine.tick_interval must be positive, got %s", c.Engine.TickInterval)
	check(c.Store.Path != "", "store.path is required")
	check(lc.DeadmanSeconds > 0, "lifecycle.deadman_seconds must be positive, got %g", lc.DeadmanSeconds)
	check(lc.DecayTimeoutSeconds > 0, "lifecycle.decay_timeout_seconds must be positive, got %g", lc.DecayTimeoutSeconds)
	check(lc.ArmRunLength > 0, "lifecycle.arm_run_length must be positive, got %d", lc.ArmRunLength)
	check(lc.SeparationDeadlineFrames > 0, "lifecycle.separation_deadline_frames must be positive, got %d", lc.SeparationDeadlineFrames)
	check(lc.CorroborationWindowSeconds >= 0, "lifecycle.corroboration_window_seconds must not be negative")
	check(lc.Aggregator.Capacity > 0, "lifecycle.aggregator.capacity must be positive, got %d", lc.Aggregator.Capacity)
	check(lc.Aggregator.MinWindowFrames > 0 && lc.Aggregator.MinWindowFrames <= lc.Aggregator.Capacity,
		"lifecycle.aggregator.min_window_frames must be in [1, capacity], got %d", lc.Aggregator.MinWindowFrames)
	check(lc.Aggregator.NarrowSpanMax < lc.Aggregator.WideSpanMin,
		"lifecycle.aggregator span bands inverted: narrow %g >= wide %g", lc.Aggregator.NarrowSpanMax, lc.Aggregator.WideSpanMin)
	check(lc.Gate.MinPeakToMedian >= 1, "lifecycle.gate.min_peak_to_median must be at least 1, got %g", lc.Gate.MinPeakToMedian)
	check(lc.Presence.JitterWindow > 0, "lifecycle.presence.jitter_window must be positive, got %d", lc.Presence.JitterWindow)
	check(lc.Impact.RequiredActiveFrames > 0, "lifecycle.impact.required_active_frames must be positive, got %d", lc.Impact.RequiredActiveFrames)
	check(lc.Separation.MinDirectionDot >= -1 && lc.Separation.MinDirectionDot <= 1,
		"lifecycle.separation.min_direction_dot must be in [-1, 1], got %g", lc.Separation.MinDirectionDot)
	check(lc.Grace.MaxGraceFrames > 0, "lifecycle.grace.max_grace_frames must be positive, got %d", lc.Grace.MaxGraceFrames)
	check(lc.Search.MaxFrames > 0, "lifecycle.search.max_frames must be positive, got %d", lc.Search.MaxFrames)

	return errors.Join(errs...)
}
// #endregion validate

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
