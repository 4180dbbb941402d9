package rs

import (
	"sort"

	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region aggregator
// Aggregator bursts consecutive classified frames into windows. It is driven
// by Ingest from a single goroutine and is not safe for concurrent use.
type Aggregator struct {
	config AggregatorConfig
	port   telemetry.Port

	buf     []FrameObservation
	lastTS  float64
	hasLast bool
}

// NewAggregator creates an aggregator with an empty buffer.
func NewAggregator(config AggregatorConfig, port telemetry.Port) *Aggregator {
	if config.Capacity < 1 {
		config.Capacity = 1
	}
	return &Aggregator{
		config: config,
		port:   port,
		buf:    make([]FrameObservation, 0, config.Capacity),
	}
}

// Ingest appends one frame and returns a window when a flush produced one.
// At most one window is returned per call.
func (a *Aggregator) Ingest(obs FrameObservation) (WindowObservation, bool) {
	var (
		win     WindowObservation
		emitted bool
	)

	if a.hasLast {
		if obs.Timestamp <= a.lastTS {
			// Out-of-order delivery: drop the burst without output.
			a.buf = a.buf[:0]
		} else if obs.Timestamp-a.lastTS > a.config.MaxFrameGapSeconds {
			win, emitted = a.flush()
		}
	}
	a.lastTS = obs.Timestamp
	a.hasLast = true

	a.buf = append(a.buf, obs)
	if len(a.buf) >= a.config.Capacity || !obs.Outcome.IsObservable() {
		if w, ok := a.flush(); ok {
			win, emitted = w, true
		}
	}
	return win, emitted
}

// Pending returns the number of buffered frames.
func (a *Aggregator) Pending() int {
	return len(a.buf)
}

// Reset discards the buffer and the timestamp history.
func (a *Aggregator) Reset() {
	a.buf = a.buf[:0]
	a.lastTS = 0
	a.hasLast = false
}

// flush summarizes and clears the buffer. Bursts below the minimum observable
// count are discarded without output.
func (a *Aggregator) flush() (WindowObservation, bool) {
	if len(a.buf) == 0 {
		return WindowObservation{}, false
	}
	win := Summarize(a.buf, a.config)
	if win.Outcome == WindowInsufficientData {
		a.buf = a.buf[:0]
		return WindowObservation{}, false
	}
	for _, f := range a.buf {
		if !f.Outcome.IsObservable() {
			continue
		}
		if span, structured, ok := frameStructure(f, a.config); ok {
			flag := 0.0
			if structured {
				flag = 1
			}
			a.port.Emit(f.Timestamp, telemetry.PhaseRS, telemetry.CodeRSStructure, span, flag)
		}
	}
	a.buf = a.buf[:0]
	a.port.Emit(win.EndTime, telemetry.PhaseWindow, telemetry.CodeWindowSummary, win.PeakShear, win.StructureConsistency)
	a.port.Emit(win.EndTime, telemetry.PhaseWindow, telemetry.CodeWindowSpan, win.WideSpanFraction, float64(win.FrameCount))
	a.port.Emit(win.EndTime, telemetry.PhaseWindow, telemetry.CodeWindowOutcome, float64(win.Outcome), float64(win.StructuredFrameCount))
	return win, true
}
// #endregion aggregator

// #region summarize
// Summarize computes window statistics over a burst. Only observable frames
// contribute shear, span and structure figures.
func Summarize(frames []FrameObservation, config AggregatorConfig) WindowObservation {
	win := WindowObservation{FrameCount: len(frames)}
	if len(frames) == 0 {
		return win
	}
	win.StartTime = frames[0].Timestamp
	win.EndTime = frames[len(frames)-1].Timestamp

	shears := make([]float64, 0, len(frames))
	for _, f := range frames {
		if !f.Outcome.IsObservable() {
			continue
		}
		win.ObservableFrameCount++
		shears = append(shears, f.Metrics.PeakShear)
		if f.Metrics.PeakShear > win.PeakShear {
			win.PeakShear = f.Metrics.PeakShear
		}

		span, structured, ok := frameStructure(f, config)
		if !ok {
			continue
		}
		switch {
		case span < config.NarrowSpanMax:
			win.NarrowSpanFrames++
		case span < config.WideSpanMin:
			win.ModerateSpanFrames++
		default:
			win.WideSpanFrames++
		}
		if structured {
			win.StructuredFrameCount++
		}
	}

	if win.ObservableFrameCount < config.MinWindowFrames {
		win.Outcome = WindowInsufficientData
		return win
	}

	win.MedianShear = median(shears)
	win.WideSpanFraction = float64(win.WideSpanFrames) / float64(win.ObservableFrameCount)
	if config.Capacity > 0 {
		win.TemporalConsistency = float64(win.FrameCount) / float64(config.Capacity)
	}
	win.StructureConsistency = float64(win.StructuredFrameCount) / float64(win.ObservableFrameCount)

	if win.StructuredFrameCount == 0 {
		win.Outcome = WindowNoiseLike
	} else {
		win.Outcome = WindowStructuredMotion
	}
	return win
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// frameStructure reports a frame's span fraction and whether it counts as
// structured: not wide, with shear above the structure floor.
func frameStructure(f FrameObservation, config AggregatorConfig) (span float64, structured, ok bool) {
	span, ok = f.SpanFraction()
	if !ok {
		return 0, false, false
	}
	return span, span < config.WideSpanMin && f.Metrics.PeakShear >= config.StructureShearFloor, true
}
// #endregion summarize
