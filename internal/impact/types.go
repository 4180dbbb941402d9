package impact

import "github.com/launchlab/shotcore/internal/frame"

// #region observation
// Observation is the impact observer's view of one frame.
type Observation struct {
	Timestamp    float64
	ActiveFrames int
	IdleFrames   int
	Speed        float64
	Drift        float64 // distance from the anchor, px; 0 without an anchor
	Anchored     bool
	Onset        bool // true only on the frame the onset edge fires
	Observed     bool // onset has fired since the last reset
}

// Onset is the latched impact event.
type Onset struct {
	Timestamp float64
	Center    frame.Point
	Anchor    frame.Point
	Speed     float64
}
// #endregion observation

// #region config
// Config holds the onset thresholds.
type Config struct {
	ActivitySpeed        float64 `yaml:"activity_speed"` // px/s
	MaxDriftPx           float64 `yaml:"max_drift_px"`
	RequiredActiveFrames int     `yaml:"required_active_frames"`
	IdleFrameCap         int     `yaml:"idle_frame_cap"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		ActivitySpeed:        5,
		MaxDriftPx:           3,
		RequiredActiveFrames: 3,
		IdleFrameCap:         240,
	}
}
// #endregion config
