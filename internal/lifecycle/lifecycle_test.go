package lifecycle

import (
	"testing"

	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/telemetry"
)

const dt = 1.0 / 240

// #region fixtures
func ts(i int) float64 { return float64(i+1) * dt }

func rsObservable(zmax, span float64) *frame.RSMetrics {
	rows := 100
	return &frame.RSMetrics{
		PeakShear:       zmax,
		ShearDerivative: -0.001,
		RowCorrelation:  0.2,
		GlobalVariance:  0.1,
		LocalVariance:   0.5,
		ValidRowCount:   40,
		Centroid:        &frame.Point{X: 400, Y: 300},
		Envelope:        &frame.RowEnvelope{StartRow: 0, EndRow: int(span*float64(rows)) - 1, TotalRows: rows},
	}
}

func rsRefused() *frame.RSMetrics {
	return &frame.RSMetrics{ValidRowCount: 2}
}

// shotFrames builds the canonical shot: 10 presence frames, 3 impact frames,
// 4 separation frames, with an RS burst across impact and separation.
func shotFrames() []frame.Frame {
	var frames []frame.Frame
	for i := 0; i < 10; i++ {
		frames = append(frames, frame.Frame{
			Timestamp:    ts(i),
			Center:       &frame.Point{X: 400 + float64(i%2), Y: 300},
			Confidence:   150,
			CameraStable: true,
			Phase:        frame.PhaseApproach,
		})
	}
	for i := 10; i < 13; i++ {
		frames = append(frames, frame.Frame{
			Timestamp:    ts(i),
			Center:       &frame.Point{X: 401, Y: 300},
			Confidence:   150,
			Speed:        8,
			CameraStable: true,
			Phase:        frame.PhaseImpact,
		})
	}
	for i := 13; i < 17; i++ {
		frames = append(frames, frame.Frame{
			Timestamp:    ts(i),
			Center:       &frame.Point{X: 401 + 2.5*float64(i-12), Y: 300},
			Confidence:   150,
			Speed:        40,
			CameraStable: true,
			Phase:        frame.PhaseSeparation,
		})
	}

	// 4 of 5 observable frames structured, then a refused frame closes the burst.
	shears := []float64{0.02, 0.01, 0.008, 0.012, 0.006}
	spans := []float64{0.2, 0.3, 0.25, 0.8, 0.3}
	for k := range shears {
		frames[10+k].RS = rsObservable(shears[k], spans[k])
	}
	frames[15].RS = rsRefused()
	return frames
}

type run struct {
	decisions []Decision
	at        []int
}

func feed(c *Controller, frames []frame.Frame) run {
	var r run
	for i, f := range frames {
		if d, ok := c.Process(f); ok {
			r.decisions = append(r.decisions, d)
			r.at = append(r.at, i)
		}
	}
	return r
}
// #endregion fixtures

// #region scenarios
func TestScenarioFinalizesOneShot(t *testing.T) {
	var events []telemetry.Event
	c := NewController(DefaultConfig(), telemetry.NewPort(telemetry.SinkFunc(func(e telemetry.Event) {
		events = append(events, e)
	})))
	frames := shotFrames()
	// the ball leaves view afterwards
	for i := 17; i < 40; i++ {
		frames = append(frames, frame.Frame{Timestamp: ts(i), CameraStable: true, Phase: frame.PhaseSeparation})
	}

	r := feed(c, frames)
	if len(r.decisions) != 1 {
		t.Fatalf("expected exactly one decision, got %d: %+v", len(r.decisions), r.decisions)
	}
	d := r.decisions[0]
	if !d.Finalized() {
		t.Fatalf("expected finalized shot, got %s (%s)", d.Label(), d.Detail)
	}
	if r.at[0] != 16 {
		t.Fatalf("expected finalize on frame 16, got %d", r.at[0])
	}
	s := d.Summary
	if s.ShotID == "" || s.FinalState != StateFinalized || d.Refusal != RefusalNone {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Displacement != 10 || s.RSPeakShear != 0.02 || s.RSStructure != 0.8 {
		t.Fatalf("unexpected evidence in summary %+v", s)
	}
	if s.ImpactAt != ts(12) || s.SeparatedAt != ts(16) {
		t.Fatalf("unexpected timeline impact=%f separated=%f", s.ImpactAt, s.SeparatedAt)
	}

	finals := 0
	for _, e := range events {
		if e.Code == telemetry.CodeFinalized {
			finals++
		}
	}
	if finals != 1 {
		t.Fatalf("expected one finalize event, got %d", finals)
	}
}

func TestScenarioBridgesOneMissingFrameAfterImpact(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := shotFrames()

	// The ball rests at (401,300) before impact, vanishes for one frame and
	// comes back up and to the left, along the search direction.
	frames[13].Center = nil
	path := []frame.Point{{X: 385, Y: 280}, {X: 377, Y: 270}, {X: 369, Y: 260}, {X: 361, Y: 250}}
	frames = append(frames, frame.Frame{
		Timestamp:    ts(17),
		Confidence:   150,
		Speed:        40,
		CameraStable: true,
		Phase:        frame.PhaseSeparation,
	})
	for k := range path {
		frames[14+k].Center = &path[k]
	}

	r := feed(c, frames)
	if len(r.decisions) != 1 {
		t.Fatalf("expected exactly one decision, got %d: %+v", len(r.decisions), r.decisions)
	}
	d := r.decisions[0]
	if !d.Finalized() {
		t.Fatalf("expected the gap to be bridged, got %s (%s)", d.Label(), d.Detail)
	}
	if r.at[0] != 17 {
		t.Fatalf("expected finalize on frame 17, got %d", r.at[0])
	}
}

func TestScenarioReappearanceAgainstSearchDirectionRefuses(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := shotFrames()
	frames[13].Center = nil
	// inside the region but back toward the frame center
	frames[14].Center = &frame.Point{X: 405, Y: 302}

	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalTrackingLost {
		t.Fatalf("expected one trackingLost refusal, got %+v", r.decisions)
	}
	if r.at[0] != 14 {
		t.Fatalf("expected refusal on frame 14, got %d", r.at[0])
	}
}

func TestScenarioCameraUnstableRefusesTrackingLost(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := shotFrames()
	for i := 13; i < len(frames); i++ {
		frames[i].CameraStable = false
	}
	r := feed(c, frames)
	if len(r.decisions) != 1 {
		t.Fatalf("expected one decision, got %d", len(r.decisions))
	}
	d := r.decisions[0]
	if d.Finalized() || d.Refusal != RefusalTrackingLost {
		t.Fatalf("expected trackingLost refusal, got %s", d.Label())
	}
	if d.FinalState != StateRefused {
		t.Fatalf("expected refused final state, got %s", d.FinalState)
	}
}

func TestScenarioDeadmanWithoutPresence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeadmanSeconds = 1
	c := NewController(cfg, telemetry.Port{})

	var frames []frame.Frame
	for i := 0; i < 300; i++ {
		// confident but jumping around: never stable enough to be present
		frames = append(frames, frame.Frame{
			Timestamp:    ts(i),
			Center:       &frame.Point{X: 400 + float64(i%3)*15, Y: 300},
			Confidence:   150,
			Speed:        30,
			CameraStable: true,
			Phase:        frame.PhaseIdle,
		})
	}

	var (
		got Decision
		ok  bool
	)
	for _, f := range frames {
		if got, ok = c.Process(f); ok {
			break
		}
		if c.Intent().Armed() {
			t.Fatal("intent must never arm")
		}
	}
	if !ok {
		t.Fatal("expected a deadman refusal")
	}
	if got.Refusal != RefusalTimeout {
		t.Fatalf("expected timeout, got %s", got.Label())
	}
	if _, idle := c.Intent().(Idle); !idle {
		t.Fatalf("expected Idle intent, got %s", c.Intent().Name())
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle state, got %s", c.State())
	}
	if n := c.Counters(); !n.Zero() {
		t.Fatalf("expected all counters zero, got %+v", n)
	}
}
// #endregion scenarios

// #region refusals
func armedFrames(n int) []frame.Frame {
	return shotFrames()[:n]
}

func TestTickFiresDeadman(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeadmanSeconds = 0.5
	c := NewController(cfg, telemetry.Port{})
	if _, ok := c.Tick(10); ok {
		t.Fatal("tick before any frame must not fire")
	}
	feed(c, armedFrames(3))
	if _, ok := c.Tick(ts(2) + 0.1); ok {
		t.Fatal("tick inside the deadman must not fire")
	}
	d, ok := c.Tick(ts(0) + 0.6)
	if !ok || d.Refusal != RefusalTimeout {
		t.Fatalf("expected timeout from tick, got %+v ok=%v", d, ok)
	}
}

func TestSeparationWithoutRSRefusesInsufficientConfidence(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := shotFrames()
	for i := range frames {
		frames[i].RS = nil
	}
	for i := 17; i < 60; i++ {
		frames = append(frames, frame.Frame{Timestamp: ts(i), CameraStable: true, Phase: frame.PhaseSeparation})
	}
	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalInsufficientConfidence {
		t.Fatalf("expected insufficientConfidence, got %+v", r.decisions)
	}
}

func TestIdlePhaseAfterImpactRefusesMDGRevoked(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := armedFrames(13)
	frames = append(frames, frame.Frame{
		Timestamp:    ts(13),
		Center:       &frame.Point{X: 403, Y: 300},
		Speed:        40,
		CameraStable: true,
		Phase:        frame.PhaseIdle,
	})
	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalMDGRevoked {
		t.Fatalf("expected mdgRevoked, got %+v", r.decisions)
	}
}

func TestGraceExhaustedRefusesTrackingLost(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := armedFrames(14)
	frames = append(frames,
		frame.Frame{Timestamp: ts(14), CameraStable: true, Phase: frame.PhaseSeparation},
		frame.Frame{Timestamp: ts(15), CameraStable: true, Phase: frame.PhaseSeparation},
	)
	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalTrackingLost {
		t.Fatalf("expected trackingLost, got %+v", r.decisions)
	}
	if r.at[0] != 15 {
		t.Fatalf("expected refusal on the second missing frame, got %d", r.at[0])
	}
}

func TestDirectionUnstableAtDeadlineRefusesInvalidMotion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeparationDeadlineFrames = 8
	c := NewController(cfg, telemetry.Port{})
	frames := armedFrames(13)
	// zig-zag: alternate between right and down-right steps
	x, y := 401.0, 300.0
	for i := 13; i < 21; i++ {
		if i%2 == 0 {
			x += 3
		} else {
			y += 3
		}
		frames = append(frames, frame.Frame{
			Timestamp:    ts(i),
			Center:       &frame.Point{X: x, Y: y},
			Speed:        40,
			CameraStable: true,
			Phase:        frame.PhaseSeparation,
		})
	}
	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalInvalidMotion {
		t.Fatalf("expected invalidMotion, got %+v", r.decisions)
	}
}

func TestSlowMotionAtDeadlineRefusesInsufficientConfidence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeparationDeadlineFrames = 5
	c := NewController(cfg, telemetry.Port{})
	frames := armedFrames(13)
	for i := 13; i < 18; i++ {
		frames = append(frames, frame.Frame{
			Timestamp:    ts(i),
			Center:       &frame.Point{X: 401 + 0.02*float64(i-12), Y: 300},
			Speed:        5,
			CameraStable: true,
			Phase:        frame.PhaseSeparation,
		})
	}
	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalInsufficientConfidence {
		t.Fatalf("expected insufficientConfidence, got %+v", r.decisions)
	}
}

func TestDecayTimeoutRefusesLifecycleTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DecayTimeoutSeconds = 0.05
	c := NewController(cfg, telemetry.Port{})
	frames := armedFrames(10)
	for i := 10; i < 40; i++ {
		frames = append(frames, frame.Frame{Timestamp: ts(i), CameraStable: true, Phase: frame.PhaseApproach})
	}
	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalLifecycleTimeout {
		t.Fatalf("expected lifecycleTimeout, got %+v", r.decisions)
	}
}

func TestNonMonotonicTimestampRefusesUnknown(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := armedFrames(10)
	frames = append(frames, frames[3])
	r := feed(c, frames)
	if len(r.decisions) != 1 || r.decisions[0].Refusal != RefusalUnknown {
		t.Fatalf("expected unknown, got %+v", r.decisions)
	}
	if !c.Counters().Zero() {
		t.Fatalf("expected a full reset, got %+v", c.Counters())
	}
}

func TestIntentArmsAfterRunLength(t *testing.T) {
	c := NewController(DefaultConfig(), telemetry.Port{})
	frames := armedFrames(10)
	var armedAt = -1
	for i, f := range frames {
		c.Process(f)
		if armedAt < 0 && c.Intent().Armed() {
			armedAt = i
		}
	}
	// present from frame 4, armed once five present frames accumulate
	if armedAt != 8 {
		t.Fatalf("expected arming on frame 8, got %d", armedAt)
	}
	if c.State() != StateArmed {
		t.Fatalf("expected armed state, got %s", c.State())
	}
}

func TestImpactBeforeArmingIsIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArmRunLength = 50
	c := NewController(cfg, telemetry.Port{})
	for i, f := range shotFrames() {
		if _, ok := c.Process(f); ok {
			t.Fatalf("frame %d: unexpected decision", i)
		}
		if c.State() == StateImpact || c.State() == StateSeparated {
			t.Fatalf("frame %d: impact accepted before arming", i)
		}
	}
	if c.Intent().Armed() {
		t.Fatalf("intent must not arm, got %s", c.Intent().Name())
	}
}
// #endregion refusals

// #region intent
func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from IntentState
		ev   IntentEvent
		want string
	}{
		{Idle{}, EventPresent, "candidate"},
		{Idle{}, EventAbsent, "idle"},
		{Idle{}, EventImpact, "idle"},
		{Candidate{At: 1}, EventArm, "active"},
		{Candidate{At: 1}, EventAbsent, "idle"},
		{Candidate{At: 1}, EventImpact, "candidate"},
		{Active{At: 1}, EventAbsent, "decay"},
		{Active{At: 1}, EventImpact, "active"},
		{Decay{At: 1}, EventPresent, "active"},
		{Decay{At: 1}, EventImpact, "active"},
		{Decay{At: 1}, EventAbsent, "decay"},
		{Active{At: 1}, EventReset, "idle"},
		{nil, EventPresent, "idle"},
	}
	for _, tc := range cases {
		got := Transition(tc.from, tc.ev, 2)
		if got.Name() != tc.want {
			t.Errorf("%v + %d: want %s, got %s", tc.from, tc.ev, tc.want, got.Name())
		}
	}
}

func TestTransitionKeepsEntryTime(t *testing.T) {
	s := Transition(Active{At: 1}, EventPresent, 5)
	if at, ok := s.Since(); !ok || at != 1 {
		t.Fatalf("staying active must keep entry time, got %f", at)
	}
	s = Transition(Active{At: 1}, EventAbsent, 5)
	if at, _ := s.Since(); at != 5 {
		t.Fatalf("decay must start at the transition, got %f", at)
	}
	if _, ok := (Idle{}).Since(); ok {
		t.Fatal("idle has no entry time")
	}
}

func TestDecisionLabel(t *testing.T) {
	if got := (Decision{Refusal: RefusalTrackingLost}).Label(); got != "refused:trackingLost" {
		t.Fatalf("unexpected label %s", got)
	}
	if got := (Decision{Summary: &EngineShotSummary{}}).Label(); got != "finalized" {
		t.Fatalf("unexpected label %s", got)
	}
	if r, ok := ParseRefusal("postImpactTimeout"); !ok || r != RefusalPostImpactTimeout {
		t.Fatal("expected postImpactTimeout to parse")
	}
	if _, ok := ParseRefusal("bogus"); ok {
		t.Fatal("unknown reason must not parse")
	}
}
// #endregion intent
