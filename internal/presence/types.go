package presence

// #region source
// Source names the sub-observer that produced a Present decision.
type Source string

const (
	SourceNone    Source = ""
	SourceDynamic Source = "dynamic"
	SourceStatic  Source = "static"
	SourceSpatial Source = "spatial"
)

// Code is the numeric form used in telemetry payloads.
func (s Source) Code() float64 {
	switch s {
	case SourceDynamic:
		return 1
	case SourceStatic:
		return 2
	case SourceSpatial:
		return 3
	}
	return 0
}
// #endregion source

// #region absent-reason
// AbsentReason explains an Absent decision, most specific first.
type AbsentReason string

const (
	ReasonNone                  AbsentReason = ""
	ReasonWarmingUp             AbsentReason = "warming_up"
	ReasonInsufficientStability AbsentReason = "insufficient_stability"
	ReasonNoPresence            AbsentReason = "no_presence"
)

// Code is the numeric form used in telemetry payloads.
func (r AbsentReason) Code() float64 {
	switch r {
	case ReasonWarmingUp:
		return 1
	case ReasonInsufficientStability:
		return 2
	case ReasonNoPresence:
		return 3
	}
	return 0
}
// #endregion absent-reason

// #region observation
// Observation carries the evidence behind one presence decision.
type Observation struct {
	Timestamp        float64
	Confidence       float64
	Jitter           float64 // max pairwise center deviation over the dynamic window, px
	SupportingFrames int
	SpatialEvidence  bool
}

// Decision is Present(source) or Absent(reason).
type Decision struct {
	Present     bool
	Source      Source
	Reason      AbsentReason
	Observation Observation
}

// Counters exposes the hysteresis counters of the three sub-observers.
type Counters struct {
	Dynamic int
	Static  int
	Spatial int
}

// Zero reports whether every counter is cleared.
func (c Counters) Zero() bool {
	return c.Dynamic == 0 && c.Static == 0 && c.Spatial == 0
}
// #endregion observation

// #region config
// Config holds the thresholds for all three sub-observers.
type Config struct {
	MinConfidence float64 `yaml:"min_confidence"`
	JitterWindow  int     `yaml:"jitter_window"` // centers in the dynamic rolling window
	MaxJitterPx   float64 `yaml:"max_jitter_px"`

	StaticMaxSpeed       float64 `yaml:"static_max_speed"` // px/s
	StaticMaxVariance    float64 `yaml:"static_max_variance"`
	StaticWindow         int     `yaml:"static_window"`
	StaticRequiredFrames int     `yaml:"static_required_frames"`

	SpatialMinOverlap     float64 `yaml:"spatial_min_overlap"` // Jaccard index
	SpatialRequiredFrames int     `yaml:"spatial_required_frames"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:         100,
		JitterWindow:          5,
		MaxJitterPx:           3,
		StaticMaxSpeed:        2,
		StaticMaxVariance:     1,
		StaticWindow:          5,
		StaticRequiredFrames:  8,
		SpatialMinOverlap:     0.8,
		SpatialRequiredFrames: 6,
	}
}
// #endregion config
