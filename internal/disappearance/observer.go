package disappearance

import "github.com/launchlab/shotcore/internal/telemetry"

// #region types
// Observation is reported once per armed window.
type Observation struct {
	Timestamp         float64
	FramesSinceImpact int
	CameraStable      bool
	Disappeared       bool
}

// Config holds the observation window length.
type Config struct {
	WindowFrames int `yaml:"window_frames"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{WindowFrames: 12}
}
// #endregion types

// #region observer
// Observer watches for the ball leaving view after an impact. It observes
// nothing until armed and disarms after its single report.
type Observer struct {
	config Config
	port   telemetry.Port

	armed  bool
	frames int
}

// NewObserver creates a disarmed observer.
func NewObserver(config Config, port telemetry.Port) *Observer {
	if config.WindowFrames < 1 {
		config.WindowFrames = 1
	}
	return &Observer{config: config, port: port}
}

// Arm opens a new observation window.
func (o *Observer) Arm() {
	o.armed = true
	o.frames = 0
}

// Armed reports whether a window is open.
func (o *Observer) Armed() bool {
	return o.armed
}

// Observe reports at most once per window: camera instability aborts it,
// absence reports a disappearance, and window expiry reports none.
func (o *Observer) Observe(ts float64, ballVisible, cameraStable bool) (Observation, bool) {
	if !o.armed {
		return Observation{}, false
	}
	o.frames++
	obs := Observation{Timestamp: ts, FramesSinceImpact: o.frames, CameraStable: cameraStable}

	switch {
	case !cameraStable:
	case !ballVisible:
		obs.Disappeared = true
	case o.frames >= o.config.WindowFrames:
	default:
		return Observation{}, false
	}

	o.Reset()
	o.port.Emit(ts, telemetry.PhaseDisappearance, telemetry.CodeDisappearance, boolValue(obs.Disappeared), boolValue(obs.CameraStable))
	return obs, true
}

// Frames returns the frame count of the open window.
func (o *Observer) Frames() int {
	return o.frames
}

// Reset closes the window.
func (o *Observer) Reset() {
	o.armed = false
	o.frames = 0
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
// #endregion observer
