package separation

import "github.com/launchlab/shotcore/internal/frame"

// #region reason
// Reason explains a NotSeparated verdict.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonNoImpact             Reason = "noImpact"
	ReasonInsufficientVelocity Reason = "insufficientVelocity"
	ReasonDirectionUnstable    Reason = "directionUnstable"
	ReasonNoSpatialEscape      Reason = "noSpatialEscape"
	ReasonDecayedImmediately   Reason = "decayedImmediately"
)

// Code is the numeric form used in telemetry payloads.
func (r Reason) Code() float64 {
	switch r {
	case ReasonNoImpact:
		return 1
	case ReasonInsufficientVelocity:
		return 2
	case ReasonDirectionUnstable:
		return 3
	case ReasonNoSpatialEscape:
		return 4
	case ReasonDecayedImmediately:
		return 5
	}
	return 0
}
// #endregion reason

// #region decision
// Decision is Separated or NotSeparated(reason).
type Decision struct {
	Timestamp    float64
	Separated    bool
	Reason       Reason
	Displacement float64 // px from the impact origin
	DirectionDot float64
	Direction    frame.Point // unit launch direction once established
	Speed        float64
}
// #endregion decision

// #region config
// Config holds the separation thresholds.
type Config struct {
	MinSeparationSpeed float64 `yaml:"min_separation_speed"` // px/s
	MinFrames          int     `yaml:"min_frames"`
	MinDirectionDot    float64 `yaml:"min_direction_dot"`
	MinEscapePx        float64 `yaml:"min_escape_px"`
	DecayFraction      float64 `yaml:"decay_fraction"` // of the established speed
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MinSeparationSpeed: 20,
		MinFrames:          4,
		MinDirectionDot:    0.8,
		MinEscapePx:        8,
		DecayFraction:      0.5,
	}
}
// #endregion config
