package rs

import "github.com/launchlab/shotcore/internal/frame"

// #region refusal-reason
// RefusalReason is the closed set of epistemic failure modes that explain a
// refused frame. It never implies that anything was detected.
type RefusalReason uint8

const (
	RefusalFlickerAligned RefusalReason = iota + 1
	RefusalGlobalRowCorrelationHigh
	RefusalLocalityUnstable
	RefusalGeometryUnderconstrained
	RefusalImpulseAmbiguous
	RefusalInsufficientRowSupport
	RefusalFrameIntegrityFailure
	RefusalInvariantViolation
)

var refusalNames = map[RefusalReason]string{
	RefusalFlickerAligned:           "flicker_aligned",
	RefusalGlobalRowCorrelationHigh: "global_row_correlation_high",
	RefusalLocalityUnstable:         "locality_unstable",
	RefusalGeometryUnderconstrained: "geometry_underconstrained",
	RefusalImpulseAmbiguous:         "impulse_ambiguous",
	RefusalInsufficientRowSupport:   "insufficient_row_support",
	RefusalFrameIntegrityFailure:    "frame_integrity_failure",
	RefusalInvariantViolation:       "invariant_violation",
}

func (r RefusalReason) String() string {
	if s, ok := refusalNames[r]; ok {
		return s
	}
	return "invalid"
}

// Valid reports whether r belongs to the closed enumeration.
func (r RefusalReason) Valid() bool {
	_, ok := refusalNames[r]
	return ok
}
// #endregion refusal-reason

// #region outcome
// Outcome is either Observable or Refused(reason). The fields are unexported
// so a Refused outcome cannot exist without a reason.
type Outcome struct {
	refused bool
	reason  RefusalReason
}

// Observable returns the observable outcome.
func Observable() Outcome { return Outcome{} }

// Refused returns a refused outcome. A reason outside the enumeration is
// recorded as an invariant violation.
func Refused(reason RefusalReason) Outcome {
	if !reason.Valid() {
		reason = RefusalInvariantViolation
	}
	return Outcome{refused: true, reason: reason}
}

// IsObservable reports whether the frame is usable RS evidence.
func (o Outcome) IsObservable() bool { return !o.refused }

// Reason returns the refusal reason and true for refused outcomes.
func (o Outcome) Reason() (RefusalReason, bool) {
	return o.reason, o.refused
}

func (o Outcome) String() string {
	if !o.refused {
		return "observable"
	}
	return "refused(" + o.reason.String() + ")"
}
// #endregion outcome

// #region frame-observation
// FrameObservation is one frame's RS metrics plus its mandatory outcome.
// It is a value type and is never modified after classification.
type FrameObservation struct {
	Timestamp float64
	Metrics   frame.RSMetrics
	Outcome   Outcome
}

// SpanFraction returns the row-span fraction and whether an envelope exists.
func (o FrameObservation) SpanFraction() (float64, bool) {
	if o.Metrics.Envelope == nil {
		return 0, false
	}
	return o.Metrics.Envelope.SpanFraction(), true
}
// #endregion frame-observation

// #region window
// WindowOutcome describes a window; it is descriptive, not a verdict.
type WindowOutcome uint8

const (
	WindowInsufficientData WindowOutcome = iota
	WindowNoiseLike
	WindowStructuredMotion
)

func (w WindowOutcome) String() string {
	switch w {
	case WindowNoiseLike:
		return "noise_like"
	case WindowStructuredMotion:
		return "structured_motion"
	default:
		return "insufficient_data"
	}
}

// WindowObservation is one aggregated burst of consecutive frames.
type WindowObservation struct {
	StartTime float64
	EndTime   float64

	FrameCount           int // frames buffered in the burst, refused included
	ObservableFrameCount int
	StructuredFrameCount int

	PeakShear   float64
	MedianShear float64

	NarrowSpanFrames   int
	ModerateSpanFrames int
	WideSpanFrames     int
	WideSpanFraction   float64

	TemporalConsistency  float64
	StructureConsistency float64

	Outcome WindowOutcome
}
// #endregion window

// #region config
// AggregatorConfig holds windowing parameters.
type AggregatorConfig struct {
	Capacity            int     `yaml:"capacity"`
	MinWindowFrames     int     `yaml:"min_window_frames"`
	MaxFrameGapSeconds  float64 `yaml:"max_frame_gap_seconds"`
	NarrowSpanMax       float64 `yaml:"narrow_span_max"`
	WideSpanMin         float64 `yaml:"wide_span_min"`
	StructureShearFloor float64 `yaml:"structure_shear_floor"`
}

// DefaultAggregatorConfig returns the calibrated defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Capacity:            8,
		MinWindowFrames:     3,
		MaxFrameGapSeconds:  0.025,
		NarrowSpanMax:       0.40,
		WideSpanMin:         0.75,
		StructureShearFloor: 0.005,
	}
}

// ClassifierConfig holds the per-frame refusal thresholds.
type ClassifierConfig struct {
	MinValidRows          int     `yaml:"min_valid_rows"`
	FlickerRowCorrelation float64 `yaml:"flicker_row_correlation"`
}

// DefaultClassifierConfig returns the calibrated defaults.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MinValidRows:          8,
		FlickerRowCorrelation: 0.85,
	}
}
// #endregion config
