package lifecycle

import (
	"context"

	"github.com/launchlab/shotcore/internal/disappearance"
	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/gate"
	"github.com/launchlab/shotcore/internal/impact"
	"github.com/launchlab/shotcore/internal/presence"
	"github.com/launchlab/shotcore/internal/reacquire"
	"github.com/launchlab/shotcore/internal/rs"
	"github.com/launchlab/shotcore/internal/separation"
)

// #region state
// State is the coarse shot lifecycle state shown to the app.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateArmed     State = "armed"
	StateImpact    State = "impact"
	StateSeparated State = "separated"
	StateFinalized State = "finalized"
	StateRefused   State = "refused"
)
// #endregion state

// #region refusal
// RefusalReason is the canonical explanation attached to a refusal.
type RefusalReason string

const (
	RefusalNone                   RefusalReason = "none"
	RefusalMDGRevoked             RefusalReason = "mdgRevoked"
	RefusalInsufficientConfidence RefusalReason = "insufficientConfidence"
	RefusalTrackingLost           RefusalReason = "trackingLost"
	RefusalInvalidMotion          RefusalReason = "invalidMotion"
	RefusalTimeout                RefusalReason = "timeout"
	RefusalUnknown                RefusalReason = "unknown"
	RefusalLifecycleTimeout       RefusalReason = "lifecycleTimeout"
	RefusalPostImpactTimeout      RefusalReason = "postImpactTimeout"
)

var refusalCodes = map[RefusalReason]float64{
	RefusalNone:                   0,
	RefusalMDGRevoked:             1,
	RefusalInsufficientConfidence: 2,
	RefusalTrackingLost:           3,
	RefusalInvalidMotion:          4,
	RefusalTimeout:                5,
	RefusalUnknown:                6,
	RefusalLifecycleTimeout:       7,
	RefusalPostImpactTimeout:      8,
}

// Code is the numeric form used in telemetry payloads.
func (r RefusalReason) Code() float64 {
	if c, ok := refusalCodes[r]; ok {
		return c
	}
	return refusalCodes[RefusalUnknown]
}

// ParseRefusal maps a name back to a reason.
func ParseRefusal(s string) (RefusalReason, bool) {
	r := RefusalReason(s)
	_, ok := refusalCodes[r]
	return r, ok
}
// #endregion refusal

// #region summary
// FlightMetrics is filled by the ballistic integrator downstream; the core
// leaves it zeroed.
type FlightMetrics struct {
	BallSpeedMPS   float64 `json:"ball_speed_mps"`
	LaunchAngleDeg float64 `json:"launch_angle_deg"`
	CarryMeters    float64 `json:"carry_m"`
}

// EngineShotSummary is the single authoritative record of a finalized shot.
type EngineShotSummary struct {
	ShotID       string        `json:"shot_id"`
	AttemptStart float64       `json:"attempt_start"`
	ImpactAt     float64       `json:"impact_at"`
	SeparatedAt  float64       `json:"separated_at"`
	FinalizedAt  float64       `json:"finalized_at"`
	FinalState   State         `json:"final_state"`
	LaunchSpeed  float64       `json:"launch_speed_px_s"`
	LaunchDir    frame.Point   `json:"launch_dir"`
	Displacement float64       `json:"displacement_px"`
	RSPeakShear  float64       `json:"rs_peak_shear"`
	RSStructure  float64       `json:"rs_structure"`
	Flight       FlightMetrics `json:"flight"`
}
// #endregion summary

// #region decision
// Decision is the controller's terminal output: a finalized summary or a
// refusal, never both.
type Decision struct {
	Timestamp    float64            `json:"timestamp"`
	AttemptStart float64            `json:"attempt_start"`
	FinalState   State              `json:"final_state"`
	Summary      *EngineShotSummary `json:"summary,omitempty"`
	Refusal      RefusalReason      `json:"refusal"`
	Detail       string             `json:"detail,omitempty"`
}

// Finalized reports whether the decision carries a shot summary.
func (d Decision) Finalized() bool {
	return d.Summary != nil
}

// Label is "finalized" or "refused:<reason>".
func (d Decision) Label() string {
	if d.Finalized() {
		return "finalized"
	}
	return "refused:" + string(d.Refusal)
}

// Sink receives terminal decisions. Errors never affect the decision.
type Sink interface {
	Publish(ctx context.Context, d Decision) error
}
// #endregion decision

// #region counters
// Counters gathers every sub-component's private counters. All zero after a
// terminal decision.
type Counters struct {
	Presence            presence.Counters
	PresentRun          int
	ImpactActive        int
	ImpactIdle          int
	SeparationFrames    int
	DisappearanceFrames int
	GraceMissed         int
	SearchFrames        int
	RSPending           int
	PostImpactFrames    int
}

// Zero reports whether every counter is cleared.
func (c Counters) Zero() bool {
	return c == Counters{}
}
// #endregion counters

// #region config
// Config holds every component's thresholds plus the authority's own deadlines.
type Config struct {
	Classifier    rs.ClassifierConfig    `yaml:"classifier"`
	Aggregator    rs.AggregatorConfig    `yaml:"aggregator"`
	Gate          gate.Config            `yaml:"gate"`
	Presence      presence.Config        `yaml:"presence"`
	Impact        impact.Config          `yaml:"impact"`
	Separation    separation.Config      `yaml:"separation"`
	Disappearance disappearance.Config   `yaml:"disappearance"`
	Grace         reacquire.GraceConfig  `yaml:"grace"`
	Search        reacquire.SearchConfig `yaml:"search"`

	ArmRunLength               int     `yaml:"arm_run_length"`
	DeadmanSeconds             float64 `yaml:"deadman_seconds"`
	DecayTimeoutSeconds        float64 `yaml:"decay_timeout_seconds"`
	SeparationDeadlineFrames   int     `yaml:"separation_deadline_frames"`
	CorroborationWindowSeconds float64 `yaml:"corroboration_window_seconds"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		Classifier:                 rs.DefaultClassifierConfig(),
		Aggregator:                 rs.DefaultAggregatorConfig(),
		Gate:                       gate.DefaultConfig(),
		Presence:                   presence.DefaultConfig(),
		Impact:                     impact.DefaultConfig(),
		Separation:                 separation.DefaultConfig(),
		Disappearance:              disappearance.DefaultConfig(),
		Grace:                      reacquire.DefaultGraceConfig(),
		Search:                     reacquire.DefaultSearchConfig(),
		ArmRunLength:               5,
		DeadmanSeconds:             15,
		DecayTimeoutSeconds:        1.5,
		SeparationDeadlineFrames:   48,
		CorroborationWindowSeconds: 0.1,
	}
}
// #endregion config
