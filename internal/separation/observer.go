package separation

import (
	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region observer
// Observer decides whether post-impact motion has become free flight.
// A Separated verdict latches until Reset.
type Observer struct {
	config Config
	port   telemetry.Port

	impact bool
	origin frame.Point

	established bool
	direction   frame.Point
	lastCenter  frame.Point
	refSpeed    float64
	frames      int

	separated bool
	verdict   Decision

	lastTS  float64
	hasLast bool
}

// NewObserver creates an observer waiting for an impact.
func NewObserver(config Config, port telemetry.Port) *Observer {
	if config.MinFrames < 1 {
		config.MinFrames = 1
	}
	return &Observer{config: config, port: port}
}

// NoteImpact records the impact onset and its origin.
func (o *Observer) NoteImpact(origin frame.Point) {
	o.impact = true
	o.origin = origin
}

// Observe checks, in order: speed floor, impact, establishment, frame count,
// direction consistency and spatial escape.
func (o *Observer) Observe(f frame.Frame) Decision {
	if o.separated {
		return o.verdict
	}
	if o.hasLast && f.Timestamp <= o.lastTS {
		o.clearTrack()
	}
	o.lastTS = f.Timestamp
	o.hasLast = true

	d := Decision{Timestamp: f.Timestamp, Speed: f.Speed, Direction: o.direction}

	if f.Speed < o.config.MinSeparationSpeed {
		return o.notSeparated(d, ReasonInsufficientVelocity)
	}
	if !o.impact {
		return o.notSeparated(d, ReasonNoImpact)
	}
	if f.Center == nil {
		return o.notSeparated(d, ReasonNoSpatialEscape)
	}
	center := *f.Center
	d.Displacement = center.Distance(o.origin)

	if !o.established {
		dir, ok := center.Sub(o.origin).Unit()
		if !ok {
			return o.notSeparated(d, ReasonNoSpatialEscape)
		}
		o.established = true
		o.direction = dir
		o.lastCenter = center
		o.refSpeed = f.Speed
		o.frames = 1
		d.Direction = dir
		d.DirectionDot = 1
		return o.notSeparated(d, ReasonNoSpatialEscape)
	}

	o.frames++
	step, ok := center.Sub(o.lastCenter).Unit()
	o.lastCenter = center
	if ok {
		d.DirectionDot = step.Dot(o.direction)
		o.direction = step
	}
	d.Direction = o.direction

	if f.Speed < o.config.DecayFraction*o.refSpeed {
		return o.notSeparated(d, ReasonDecayedImmediately)
	}
	if o.frames < o.config.MinFrames {
		return o.notSeparated(d, ReasonNoSpatialEscape)
	}
	if !ok || d.DirectionDot < o.config.MinDirectionDot {
		return o.notSeparated(d, ReasonDirectionUnstable)
	}
	if d.Displacement < o.config.MinEscapePx {
		return o.notSeparated(d, ReasonNoSpatialEscape)
	}

	d.Separated = true
	o.separated = true
	o.verdict = d
	o.port.Emit(f.Timestamp, telemetry.PhaseSeparation, telemetry.CodeSeparation, 0, d.Displacement)
	return d
}

func (o *Observer) notSeparated(d Decision, reason Reason) Decision {
	d.Reason = reason
	if o.impact {
		o.port.Emit(d.Timestamp, telemetry.PhaseSeparation, telemetry.CodeSeparation, reason.Code(), d.Displacement)
	}
	return d
}

// Frames returns the post-establishment frame counter.
func (o *Observer) Frames() int {
	return o.frames
}

// Reset forgets the impact and any track.
func (o *Observer) Reset() {
	o.impact = false
	o.origin = frame.Point{}
	o.clearTrack()
	o.separated = false
	o.verdict = Decision{}
	o.lastTS = 0
	o.hasLast = false
}

func (o *Observer) clearTrack() {
	o.established = false
	o.direction = frame.Point{}
	o.lastCenter = frame.Point{}
	o.refSpeed = 0
	o.frames = 0
}
// #endregion observer
