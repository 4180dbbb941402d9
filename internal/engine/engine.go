package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/lifecycle"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region types
// Options configures an Engine.
type Options struct {
	Lifecycle    lifecycle.Config
	RingCapacity int
	Sinks        []lifecycle.Sink
	Logger       *slog.Logger
}

// Snapshot is the live view published after every step.
type Snapshot struct {
	State        lifecycle.State     `json:"state"`
	Intent       string              `json:"intent"`
	IntentSince  float64             `json:"intent_since"`
	Armed        bool                `json:"armed"`
	Attempting   bool                `json:"attempting"`
	AttemptStart float64             `json:"attempt_start"`
	LastFrame    float64             `json:"last_frame"`
	Frames       uint64              `json:"frames"`
	Accepted     uint64              `json:"accepted"`
	Refused      uint64              `json:"refused"`
	SinkErrors   uint64              `json:"sink_errors"`
	LastDecision *lifecycle.Decision `json:"last_decision,omitempty"`
}
// #endregion types

// #region engine
// Engine is the explicit context every component is reached through: one
// telemetry ring, one controller, and the outcome sinks. Step and Tick must be
// called from a single goroutine; State may be read from any.
type Engine struct {
	ring       *telemetry.Ring
	controller *lifecycle.Controller
	sinks      []lifecycle.Sink
	log        *slog.Logger

	frames    uint64
	accepted  uint64
	refused   uint64
	lastFrame float64
	hasFrame  bool
	last      *lifecycle.Decision

	sinkErrors atomic.Uint64
	snapshot   atomic.Pointer[Snapshot]
}

// New builds the engine and its controller.
func New(opts Options) *Engine {
	if opts.RingCapacity < 1 {
		opts.RingCapacity = 4096
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ring := telemetry.NewRing(opts.RingCapacity)
	e := &Engine{
		ring:       ring,
		controller: lifecycle.NewController(opts.Lifecycle, telemetry.NewPort(ring)),
		sinks:      append([]lifecycle.Sink(nil), opts.Sinks...),
		log:        opts.Logger,
	}
	e.publish()
	return e
}

// AddSink registers another outcome sink. Call before the engine runs.
func (e *Engine) AddSink(s lifecycle.Sink) {
	e.sinks = append(e.sinks, s)
}

// Ring returns the telemetry ring every component emits into.
func (e *Engine) Ring() *telemetry.Ring { return e.ring }

// Step feeds one frame through the controller and fans out any decision.
func (e *Engine) Step(ctx context.Context, f frame.Frame) (lifecycle.Decision, bool) {
	e.frames++
	e.lastFrame = f.Timestamp
	e.hasFrame = true
	d, ok := e.controller.Process(f)
	if ok {
		e.decide(ctx, d)
	}
	e.publish()
	return d, ok
}

// Tick enforces the deadman at ts on the frame timebase.
func (e *Engine) Tick(ctx context.Context, ts float64) (lifecycle.Decision, bool) {
	d, ok := e.controller.Tick(ts)
	if ok {
		e.decide(ctx, d)
		e.publish()
	}
	return d, ok
}

// LastFrame returns the timestamp of the most recent frame.
func (e *Engine) LastFrame() (float64, bool) { return e.lastFrame, e.hasFrame }

// State returns the latest published snapshot.
func (e *Engine) State() Snapshot { return *e.snapshot.Load() }
// #endregion engine

// #region fan-out
func (e *Engine) decide(ctx context.Context, d lifecycle.Decision) {
	dc := d
	e.last = &dc
	if d.Finalized() {
		e.accepted++
		e.log.Info("engine: shot finalized",
			"shot_id", d.Summary.ShotID,
			"launch_speed", d.Summary.LaunchSpeed,
			"displacement", d.Summary.Displacement,
			"rs_peak_shear", d.Summary.RSPeakShear,
		)
	} else {
		e.refused++
		e.log.Info("engine: attempt refused",
			"reason", string(d.Refusal),
			"detail", d.Detail,
			"attempt_start", d.AttemptStart,
			"at", d.Timestamp,
		)
	}
	for _, s := range e.sinks {
		if err := s.Publish(ctx, d); err != nil {
			e.sinkErrors.Add(1)
			e.log.Warn("engine: sink publish failed", "decision", d.Label(), "error", err)
		}
	}
}

func (e *Engine) publish() {
	intent := e.controller.Intent()
	since, _ := intent.Since()
	start, attempting := e.controller.AttemptStart()
	snap := &Snapshot{
		State:        e.controller.State(),
		Intent:       intent.Name(),
		IntentSince:  since,
		Armed:        intent.Armed(),
		Attempting:   attempting,
		AttemptStart: start,
		LastFrame:    e.lastFrame,
		Frames:       e.frames,
		Accepted:     e.accepted,
		Refused:      e.refused,
		SinkErrors:   e.sinkErrors.Load(),
		LastDecision: e.last,
	}
	e.snapshot.Store(snap)
}
// #endregion fan-out
