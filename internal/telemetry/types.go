package telemetry

// #region codes
// Code identifies a telemetry event kind. Values below 0x80 are frame-level,
// 0x80-0x9f are window-level and 0xa0 upward belong to the lifecycle authority.
type Code uint16

const (
	CodeRSMetric      Code = 0x20
	CodeRSLocality    Code = 0x21
	CodeRSStructure   Code = 0x22
	CodePresent       Code = 0x30
	CodeAbsent        Code = 0x31
	CodeImpactOnset   Code = 0x50
	CodeImpactReset   Code = 0x51
	CodeSeparation    Code = 0x60
	CodeDisappearance Code = 0x61
	CodeReacquire     Code = 0x62
	CodeWindowSummary Code = 0x80
	CodeWindowSpan    Code = 0x81
	CodeWindowOutcome Code = 0x82
	CodeGatePass      Code = 0x90
	CodeGateFail      Code = 0x91
	CodeIntent        Code = 0xA0
	CodeFinalized     Code = 0xB0
	CodeRefused       Code = 0xB1
)
// #endregion codes

// #region phase-tags
// Phase tags name the stage that emitted an event.
const (
	PhaseRS            = "rs"
	PhaseWindow        = "window"
	PhaseGate          = "gate"
	PhasePresence      = "presence"
	PhaseImpact        = "impact"
	PhaseSeparation    = "separation"
	PhaseDisappearance = "disappearance"
	PhaseReacquire     = "reacquire"
	PhaseIntent        = "intent"
	PhaseLifecycle     = "lifecycle"
)
// #endregion phase-tags

// #region event
// Event is a fire-and-forget structured record: a phase tag, a numeric code
// and two scalar payloads whose meaning depends on the code.
type Event struct {
	Timestamp float64 `json:"timestamp"`
	Phase     string  `json:"phase"`
	Code      Code    `json:"code"`
	ValueA    float64 `json:"value_a"`
	ValueB    float64 `json:"value_b"`
}
// #endregion event

// #region sink
// Sink receives telemetry events. Implementations must not block the caller.
type Sink interface {
	Emit(Event)
}

// Port is the optional emission handle injected into every component.
// The zero Port has no subscriber and drops everything.
type Port struct {
	sink Sink
}

// NewPort wraps sink. A nil sink yields a Port without a subscriber.
func NewPort(sink Sink) Port {
	return Port{sink: sink}
}

// Attached reports whether a subscriber is present.
func (p Port) Attached() bool {
	return p.sink != nil
}

// Emit forwards one event to the subscriber, if any.
func (p Port) Emit(ts float64, phase string, code Code, a, b float64) {
	if p.sink == nil {
		return
	}
	p.sink.Emit(Event{Timestamp: ts, Phase: phase, Code: code, ValueA: a, ValueB: b})
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }
// #endregion sink
