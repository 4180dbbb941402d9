package gate

// #region condition
// Condition names one required window property. A failed window lists every
// condition it violated, never a generic failure.
type Condition string

const (
	ConditionFrameCount      Condition = "frame_count"
	ConditionStructure       Condition = "structure"
	ConditionPeakFloor       Condition = "peak_floor"
	ConditionPeakSeparation  Condition = "peak_separation"
	ConditionFlickerFallback Condition = "flicker_fallback"
)

// Code is the numeric form used in telemetry payloads.
func (c Condition) Code() float64 {
	switch c {
	case ConditionFrameCount:
		return 1
	case ConditionStructure:
		return 2
	case ConditionPeakFloor:
		return 3
	case ConditionPeakSeparation:
		return 4
	case ConditionFlickerFallback:
		return 5
	}
	return 0
}
// #endregion condition

// #region failure
// Failure records one violated condition.
type Failure struct {
	Condition Condition
	Reason    string
}
// #endregion failure

// #region gate-config
// Config holds the window gate thresholds. The peak-separation formula and
// structure floor are calibration surfaces, not fixed constants.
type Config struct {
	MinFrames               int     `yaml:"min_frames"`
	MinStructuredFrames     int     `yaml:"min_structured_frames"`
	MinStructureConsistency float64 `yaml:"min_structure_consistency"` // alternative to MinStructuredFrames
	MinPeakShear            float64 `yaml:"min_peak_shear"`            // absolute physical floor
	MinPeakToMedian         float64 `yaml:"min_peak_to_median"`        // peak must exceed median by this factor
	WideDominanceFraction   float64 `yaml:"wide_dominance_fraction"`
	FlickerMaxStructure     float64 `yaml:"flicker_max_structure"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MinFrames:               3,
		MinStructuredFrames:     2,
		MinStructureConsistency: 0.45,
		MinPeakShear:            0.008,
		MinPeakToMedian:         1.5,
		WideDominanceFraction:   0.5,
		FlickerMaxStructure:     0.3,
	}
}
// #endregion gate-config

// #region gate-decision
// Decision is the output of the gate evaluation.
type Decision struct {
	Pass         bool
	Reason       string
	Failures     []Failure // non-empty iff !Pass
	PeakToMedian float64   // +Inf when the median is zero
	WindowEnd    float64
}
// #endregion gate-decision
