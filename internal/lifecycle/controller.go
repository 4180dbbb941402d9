package lifecycle

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/launchlab/shotcore/internal/disappearance"
	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/gate"
	"github.com/launchlab/shotcore/internal/impact"
	"github.com/launchlab/shotcore/internal/presence"
	"github.com/launchlab/shotcore/internal/reacquire"
	"github.com/launchlab/shotcore/internal/rs"
	"github.com/launchlab/shotcore/internal/separation"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region controller
// Controller is the only component allowed to finalize a shot or refuse.
// It owns every observer and drives them in frame order. Not safe for
// concurrent use; the engine runner serializes access.
type Controller struct {
	config Config
	port   telemetry.Port

	classifier    *rs.Classifier
	aggregator    *rs.Aggregator
	gate          *gate.Gate
	presence      *presence.Observer
	impact        *impact.Observer
	separation    *separation.Observer
	disappearance *disappearance.Observer
	grace         *reacquire.Grace
	search        *reacquire.Search

	intent IntentState
	state  State

	started      bool
	attemptStart float64
	lastTS       float64
	hasLast      bool

	presentRun int

	prevCenter frame.Point
	prevTS     float64
	hasPrev    bool
	velocity   frame.Point

	impactAt      float64
	postFrames    int
	lastSepReason separation.Reason
	separated     separation.Decision
	separatedAt   float64

	pass *gatePass
}

type gatePass struct {
	at        float64
	peak      float64
	structure float64
}

// NewController wires a fresh set of observers sharing one telemetry port.
func NewController(config Config, port telemetry.Port) *Controller {
	if config.ArmRunLength < 1 {
		config.ArmRunLength = 1
	}
	return &Controller{
		config:        config,
		port:          port,
		classifier:    rs.NewClassifier(config.Classifier, port),
		aggregator:    rs.NewAggregator(config.Aggregator, port),
		gate:          gate.NewGate(config.Gate, port),
		presence:      presence.NewObserver(config.Presence, port),
		impact:        impact.NewObserver(config.Impact, port),
		separation:    separation.NewObserver(config.Separation, port),
		disappearance: disappearance.NewObserver(config.Disappearance, port),
		grace:         reacquire.NewGrace(config.Grace, port),
		search:        reacquire.NewSearch(config.Search),
		intent:        Idle{},
		state:         StateIdle,
	}
}

// Process consumes one frame and returns a terminal decision when the
// attempt ends on this frame.
func (c *Controller) Process(f frame.Frame) (Decision, bool) {
	ts := f.Timestamp
	if c.hasLast && ts <= c.lastTS {
		c.lastTS = ts
		if c.inProgress() {
			return c.refuse(ts, RefusalUnknown, fmt.Sprintf("non-monotonic timestamp %.6f", ts)), true
		}
		c.reset()
	}
	c.lastTS = ts
	c.hasLast = true

	if !c.started {
		c.started = true
		c.attemptStart = ts
	}

	// Deadman overrides all evidence.
	if ts-c.attemptStart >= c.config.DeadmanSeconds {
		return c.refuse(ts, RefusalTimeout, fmt.Sprintf("deadman after %.3fs", ts-c.attemptStart)), true
	}

	c.observeRS(f)

	switch c.state {
	case StateImpact, StateSeparated:
		return c.postImpact(f)
	}
	return c.preImpact(f)
}

// Tick enforces the deadman between frames. ts is on the frame timebase.
func (c *Controller) Tick(ts float64) (Decision, bool) {
	if !c.started || ts-c.attemptStart < c.config.DeadmanSeconds {
		return Decision{}, false
	}
	return c.refuse(ts, RefusalTimeout, fmt.Sprintf("deadman after %.3fs without frames", ts-c.attemptStart)), true
}

// Intent returns the current intent state.
func (c *Controller) Intent() IntentState { return c.intent }

// State returns the coarse lifecycle state.
func (c *Controller) State() State { return c.state }

// AttemptStart returns the start of the running attempt, if any.
func (c *Controller) AttemptStart() (float64, bool) { return c.attemptStart, c.started }

// Counters collects every observer's counters.
func (c *Controller) Counters() Counters {
	active, idle := c.impact.Counters()
	return Counters{
		Presence:            c.presence.Counters(),
		PresentRun:          c.presentRun,
		ImpactActive:        active,
		ImpactIdle:          idle,
		SeparationFrames:    c.separation.Frames(),
		DisappearanceFrames: c.disappearance.Frames(),
		GraceMissed:         c.grace.Missed(),
		SearchFrames:        c.search.Frames(),
		RSPending:           c.aggregator.Pending(),
		PostImpactFrames:    c.postFrames,
	}
}

// Reset abandons the running attempt without a decision.
func (c *Controller) Reset() {
	c.reset()
}
// #endregion controller

// #region evidence
func (c *Controller) observeRS(f frame.Frame) {
	if f.RS == nil {
		return
	}
	obs := c.classifier.Classify(f.Timestamp, *f.RS)
	win, ok := c.aggregator.Ingest(obs)
	if !ok || !c.intent.Armed() {
		return
	}
	if d := c.gate.Evaluate(win); d.Pass {
		c.pass = &gatePass{at: win.EndTime, peak: win.PeakShear, structure: win.StructureConsistency}
	}
}

func (c *Controller) preImpact(f frame.Frame) (Decision, bool) {
	ts := f.Timestamp
	pd := c.presence.Observe(f)
	if pd.Present {
		c.presentRun++
		c.setIntent(Transition(c.intent, EventPresent, ts), ts)
		if c.presentRun >= c.config.ArmRunLength {
			c.setIntent(Transition(c.intent, EventArm, ts), ts)
		}
	} else {
		c.presentRun = 0
		c.setIntent(Transition(c.intent, EventAbsent, ts), ts)
	}

	if d, ok := c.intent.(Decay); ok && ts-d.At >= c.config.DecayTimeoutSeconds {
		return c.refuse(ts, RefusalLifecycleTimeout, fmt.Sprintf("presence lost for %.3fs while armed", ts-d.At)), true
	}

	io := c.impact.Observe(f, pd.Present)
	c.track(f)
	if io.Onset {
		if !c.intent.Armed() {
			// Motion before arming is not a shot.
			c.impact.Reset()
		} else {
			c.beginImpact(ts)
		}
	}
	c.state = stateFor(c.intent, c.state)
	return Decision{}, false
}

func (c *Controller) beginImpact(ts float64) {
	onset, _ := c.impact.Onset()
	c.setIntent(Transition(c.intent, EventImpact, ts), ts)
	c.state = StateImpact
	c.impactAt = ts
	c.postFrames = 0
	c.separation.NoteImpact(onset.Center)
	c.disappearance.Arm()
	c.search.Arm(onset.Center)
	// A ball at rest has no velocity yet; expect it along the search direction.
	heading := c.velocity
	if heading.Norm() == 0 {
		heading = c.search.Direction()
	}
	c.grace.Arm(onset.Center, heading)
}

func (c *Controller) postImpact(f frame.Frame) (Decision, bool) {
	ts := f.Timestamp
	c.postFrames++

	if f.Phase == frame.PhaseIdle {
		return c.refuse(ts, RefusalMDGRevoked, "motion density returned to idle after impact"), true
	}
	if c.state == StateSeparated {
		return c.awaitCorroboration(ts)
	}

	visible := f.Center != nil
	if obs, ok := c.disappearance.Observe(ts, visible, f.CameraStable); ok && !obs.CameraStable {
		return c.refuse(ts, RefusalTrackingLost, "camera unstable during disappearance window"), true
	}

	// A reappearance outside the search region is not the same ball.
	if visible && c.grace.Missed() > 0 && !c.search.Contains(*f.Center) {
		visible = false
	}
	if !visible {
		c.search.Step()
		if !c.grace.Miss(ts) {
			return c.refuse(ts, RefusalTrackingLost, fmt.Sprintf("ball missing for %d frames", c.grace.Missed())), true
		}
		return c.checkDeadline(ts)
	}

	center := *f.Center
	if c.grace.Missed() > 0 && !c.grace.Reappear(ts, center, f.Speed) {
		return c.refuse(ts, RefusalTrackingLost, "reappearance failed direction or speed check"), true
	}
	c.track(f)
	c.grace.Track(center, c.velocity)
	c.search.Recenter(center)
	c.search.Refine(c.velocity)
	c.search.Step()

	sd := c.separation.Observe(f)
	if sd.Separated {
		c.state = StateSeparated
		c.separated = sd
		c.separatedAt = ts
		return c.awaitCorroboration(ts)
	}
	c.lastSepReason = sd.Reason
	return c.checkDeadline(ts)
}

func (c *Controller) checkDeadline(ts float64) (Decision, bool) {
	if c.postFrames < c.config.SeparationDeadlineFrames {
		return Decision{}, false
	}
	detail := fmt.Sprintf("not separated after %d frames (%s)", c.postFrames, c.lastSepReason)
	switch c.lastSepReason {
	case separation.ReasonDirectionUnstable:
		return c.refuse(ts, RefusalInvalidMotion, detail), true
	case separation.ReasonInsufficientVelocity, separation.ReasonDecayedImmediately:
		return c.refuse(ts, RefusalInsufficientConfidence, detail), true
	}
	return c.refuse(ts, RefusalPostImpactTimeout, detail), true
}

// awaitCorroboration finalizes when an RS gate pass lies within the
// corroboration window of the separation, and refuses once the window closes.
func (c *Controller) awaitCorroboration(ts float64) (Decision, bool) {
	window := c.config.CorroborationWindowSeconds
	if c.pass != nil && math.Abs(c.separatedAt-c.pass.at) <= window {
		return c.finalize(ts), true
	}
	if ts-c.separatedAt > window {
		return c.refuse(ts, RefusalInsufficientConfidence, "separation without RS corroboration"), true
	}
	return Decision{}, false
}

// track updates the last visible center and the velocity estimate.
func (c *Controller) track(f frame.Frame) {
	if f.Center == nil {
		return
	}
	if c.hasPrev && f.Timestamp > c.prevTS {
		c.velocity = f.Center.Sub(c.prevCenter).Scale(1 / (f.Timestamp - c.prevTS))
	}
	c.prevCenter = *f.Center
	c.prevTS = f.Timestamp
	c.hasPrev = true
}
// #endregion evidence

// #region terminal
func (c *Controller) finalize(ts float64) Decision {
	summary := &EngineShotSummary{
		ShotID:       uuid.NewString(),
		AttemptStart: c.attemptStart,
		ImpactAt:     c.impactAt,
		SeparatedAt:  c.separatedAt,
		FinalizedAt:  ts,
		FinalState:   StateFinalized,
		LaunchSpeed:  c.separated.Speed,
		LaunchDir:    c.separated.Direction,
		Displacement: c.separated.Displacement,
		RSPeakShear:  c.pass.peak,
		RSStructure:  c.pass.structure,
	}
	d := Decision{
		Timestamp:    ts,
		AttemptStart: c.attemptStart,
		FinalState:   StateFinalized,
		Summary:      summary,
		Refusal:      RefusalNone,
	}
	c.port.Emit(ts, telemetry.PhaseLifecycle, telemetry.CodeFinalized, summary.RSPeakShear, summary.LaunchSpeed)
	c.reset()
	return d
}

func (c *Controller) refuse(ts float64, reason RefusalReason, detail string) Decision {
	d := Decision{
		Timestamp:    ts,
		AttemptStart: c.attemptStart,
		FinalState:   StateRefused,
		Refusal:      reason,
		Detail:       detail,
	}
	c.port.Emit(ts, telemetry.PhaseLifecycle, telemetry.CodeRefused, reason.Code(), float64(c.postFrames))
	c.reset()
	return d
}

// reset returns every component to its initial state. The last timestamp is
// kept so ordering checks continue across attempts.
func (c *Controller) reset() {
	c.aggregator.Reset()
	c.presence.Reset()
	c.impact.Reset()
	c.separation.Reset()
	c.disappearance.Reset()
	c.grace.Reset()
	c.search.Reset()

	c.setIntent(Idle{}, c.lastTS)
	c.state = StateIdle
	c.started = false
	c.attemptStart = 0
	c.presentRun = 0
	c.prevCenter = frame.Point{}
	c.prevTS = 0
	c.hasPrev = false
	c.velocity = frame.Point{}
	c.impactAt = 0
	c.postFrames = 0
	c.lastSepReason = separation.ReasonNone
	c.separated = separation.Decision{}
	c.separatedAt = 0
	c.pass = nil
}

func (c *Controller) inProgress() bool {
	_, idle := c.intent.(Idle)
	return !idle || c.state == StateImpact || c.state == StateSeparated
}

func (c *Controller) setIntent(next IntentState, ts float64) {
	if next.Name() != c.intent.Name() {
		c.port.Emit(ts, telemetry.PhaseIntent, telemetry.CodeIntent, next.Code(), c.intent.Code())
	}
	c.intent = next
}

// stateFor derives the pre-impact lifecycle state from the intent.
func stateFor(intent IntentState, cur State) State {
	if cur == StateImpact || cur == StateSeparated {
		return cur
	}
	switch intent.(type) {
	case Candidate:
		return StateAcquiring
	case Active, Decay:
		return StateArmed
	}
	return StateIdle
}
// #endregion terminal
