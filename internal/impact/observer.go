package impact

import (
	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region observer
// Observer detects the impact onset edge. Active and idle counters are
// mutually exclusive; onset fires once and latches until Reset.
type Observer struct {
	config Config
	port   telemetry.Port

	anchor   frame.Point
	anchored bool
	active   int
	idle     int

	onset    Onset
	observed bool

	lastTS  float64
	hasLast bool
}

// NewObserver creates an unanchored observer.
func NewObserver(config Config, port telemetry.Port) *Observer {
	if config.RequiredActiveFrames < 1 {
		config.RequiredActiveFrames = 1
	}
	return &Observer{config: config, port: port}
}

// Observe feeds one frame. present is the presence decision for the same
// frame; the anchor is taken from the first present frame with a center.
func (o *Observer) Observe(f frame.Frame, present bool) Observation {
	if o.observed {
		return o.snapshot(f.Timestamp, f.Speed, o.onset.Center.Distance(o.onset.Anchor), false)
	}
	if o.hasLast && f.Timestamp <= o.lastTS {
		o.Reset()
	}
	o.lastTS = f.Timestamp
	o.hasLast = true

	if !o.anchored {
		if present && f.Center != nil {
			o.anchor = *f.Center
			o.anchored = true
		}
		return o.snapshot(f.Timestamp, f.Speed, 0, false)
	}

	drift := -1.0
	if f.Center != nil {
		drift = f.Center.Distance(o.anchor)
	}
	isActive := drift >= 0 && drift <= o.config.MaxDriftPx && f.Speed >= o.config.ActivitySpeed

	if isActive {
		o.active++
		o.idle = 0
	} else {
		o.idle++
		o.active = 0
		if o.idle > o.config.IdleFrameCap {
			o.port.Emit(f.Timestamp, telemetry.PhaseImpact, telemetry.CodeImpactReset, float64(o.idle), 0)
			o.dropAnchor()
			return o.snapshot(f.Timestamp, f.Speed, 0, false)
		}
	}

	if o.active >= o.config.RequiredActiveFrames {
		o.observed = true
		o.onset = Onset{Timestamp: f.Timestamp, Center: *f.Center, Anchor: o.anchor, Speed: f.Speed}
		o.port.Emit(f.Timestamp, telemetry.PhaseImpact, telemetry.CodeImpactOnset, f.Speed, drift)
		return o.snapshot(f.Timestamp, f.Speed, drift, true)
	}
	return o.snapshot(f.Timestamp, f.Speed, max(drift, 0), false)
}

// Onset returns the latched onset and whether one has been observed.
func (o *Observer) Onset() (Onset, bool) {
	return o.onset, o.observed
}

// Counters returns the active and idle frame counters.
func (o *Observer) Counters() (active, idle int) {
	return o.active, o.idle
}

// Reset drops the anchor, counters and latched onset.
func (o *Observer) Reset() {
	o.dropAnchor()
	o.onset = Onset{}
	o.observed = false
	o.lastTS = 0
	o.hasLast = false
}

func (o *Observer) dropAnchor() {
	o.anchor = frame.Point{}
	o.anchored = false
	o.active = 0
	o.idle = 0
}

func (o *Observer) snapshot(ts, speed, drift float64, edge bool) Observation {
	return Observation{
		Timestamp:    ts,
		ActiveFrames: o.active,
		IdleFrames:   o.idle,
		Speed:        speed,
		Drift:        drift,
		Anchored:     o.anchored,
		Onset:        edge,
		Observed:     o.observed,
	}
}
// #endregion observer
