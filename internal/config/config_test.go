package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shotcore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeFile(t, `
log_level: debug
engine:
  tick_interval: 100ms
store:
  path: /tmp/range.db
lifecycle:
  deadman_seconds: 20
  gate:
    min_peak_to_median: 2.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Store.Path != "/tmp/range.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Engine.TickInterval != 100*time.Millisecond {
		t.Fatalf("expected 100ms tick, got %s", cfg.Engine.TickInterval)
	}
	if cfg.Lifecycle.DeadmanSeconds != 20 || cfg.Lifecycle.Gate.MinPeakToMedian != 2 {
		t.Fatalf("nested lifecycle values not applied: %+v", cfg.Lifecycle)
	}
	// untouched fields keep their defaults
	if cfg.Lifecycle.Gate.MinFrames != 3 || cfg.Engine.QueueDepth != 256 {
		t.Fatalf("defaults lost: gate=%+v engine=%+v", cfg.Lifecycle.Gate, cfg.Engine)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHOTCORE_DB", "/data/env.db")
	t.Setenv("SHOTCORE_REDIS_ADDR", "redis:6379")
	t.Setenv("SHOTCORE_DEADMAN", "7.5")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/data/env.db" || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Lifecycle.DeadmanSeconds != 7.5 {
		t.Fatalf("expected deadman 7.5, got %g", cfg.Lifecycle.DeadmanSeconds)
	}
}

func TestBadDeadmanEnv(t *testing.T) {
	t.Setenv("SHOTCORE_DEADMAN", "soon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Engine.QueueDepth = 0
	cfg.Lifecycle.DeadmanSeconds = 0
	cfg.Lifecycle.Aggregator.NarrowSpanMax = 0.9
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"queue_depth", "deadman_seconds", "span bands"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "engine: [not, a, map]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
