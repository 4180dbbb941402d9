package reacquire

import (
	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region grace-config
// GraceConfig bounds how long the track may be lost after impact.
type GraceConfig struct {
	MaxGraceFrames int     `yaml:"max_grace_frames"`
	EscapeSpeed    float64 `yaml:"escape_speed"` // px/s a reappearance must reach
}

// DefaultGraceConfig returns the calibrated defaults.
func DefaultGraceConfig() GraceConfig {
	return GraceConfig{MaxGraceFrames: 2, EscapeSpeed: 20}
}
// #endregion grace-config

// #region grace
// Grace is a small missing-frame budget armed at impact. Validity is lost
// when the budget runs out or a reappearance fails validation.
type Grace struct {
	config GraceConfig
	port   telemetry.Port

	armed    bool
	valid    bool
	missed   int
	last     frame.Point
	velocity frame.Point
}

// NewGrace creates a disarmed grace counter.
func NewGrace(config GraceConfig, port telemetry.Port) *Grace {
	return &Grace{config: config, port: port}
}

// Arm starts a fresh budget from the last known center and velocity.
func (g *Grace) Arm(center, velocity frame.Point) {
	g.armed = true
	g.valid = true
	g.missed = 0
	g.last = center
	g.velocity = velocity
}

// Track updates the last known state on a continuously visible frame.
func (g *Grace) Track(center, velocity frame.Point) {
	if !g.armed || !g.valid {
		return
	}
	g.last = center
	if velocity.Norm() > 0 {
		g.velocity = velocity
	}
}

// Miss spends one frame of budget and returns whether the track is still valid.
func (g *Grace) Miss(ts float64) bool {
	if !g.armed || !g.valid {
		return false
	}
	g.missed++
	if g.missed >= g.config.MaxGraceFrames {
		g.valid = false
		g.port.Emit(ts, telemetry.PhaseReacquire, telemetry.CodeReacquire, 0, float64(g.missed))
	}
	return g.valid
}

// Reappear validates a reappearance after missing frames: the displacement
// must point along the last velocity and speed must reach the escape floor.
// A failed validation invalidates the track.
func (g *Grace) Reappear(ts float64, center frame.Point, speed float64) bool {
	if !g.armed || !g.valid {
		return false
	}
	if g.missed == 0 {
		g.Track(center, g.velocity)
		return true
	}
	disp := center.Sub(g.last)
	if disp.Dot(g.velocity) <= 0 || speed < g.config.EscapeSpeed {
		g.valid = false
		g.port.Emit(ts, telemetry.PhaseReacquire, telemetry.CodeReacquire, 0, float64(g.missed))
		return false
	}
	g.port.Emit(ts, telemetry.PhaseReacquire, telemetry.CodeReacquire, 1, float64(g.missed))
	g.missed = 0
	g.last = center
	return true
}

// Armed reports whether the counter has been armed since the last reset.
func (g *Grace) Armed() bool { return g.armed }

// Valid reports whether the track is still reacquirable.
func (g *Grace) Valid() bool { return g.armed && g.valid }

// Missed returns the consecutive missing-frame count.
func (g *Grace) Missed() int { return g.missed }

// Reset disarms the counter.
func (g *Grace) Reset() {
	*g = Grace{config: g.config, port: g.port}
}
// #endregion grace
