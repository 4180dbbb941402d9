package presence

import (
	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region observer
// Observer fuses dynamic, static and spatial presence evidence. Each path
// keeps its own hysteresis counter; a higher-priority success clears the
// lower-priority paths. Not safe for concurrent use.
type Observer struct {
	config Config
	port   telemetry.Port

	dynCenters []frame.Point
	dynRun     int

	staticCenters []frame.Point
	staticRun     int

	prevMask   map[int]struct{}
	spatialRun int

	lastTS  float64
	hasLast bool

	reported    bool
	lastPresent bool
	lastSource  Source
	lastReason  AbsentReason
}

// NewObserver creates an observer with cleared counters.
func NewObserver(config Config, port telemetry.Port) *Observer {
	if config.JitterWindow < 1 {
		config.JitterWindow = 1
	}
	if config.StaticWindow < 1 {
		config.StaticWindow = 1
	}
	return &Observer{config: config, port: port}
}

// Observe evaluates one frame in strict priority: dynamic, static, spatial.
func (o *Observer) Observe(f frame.Frame) Decision {
	if o.hasLast && f.Timestamp <= o.lastTS {
		o.Reset()
	}
	o.lastTS = f.Timestamp
	o.hasLast = true

	d := o.evaluate(f)
	o.report(d)
	return d
}

func (o *Observer) evaluate(f frame.Frame) Decision {
	obs := Observation{Timestamp: f.Timestamp, Confidence: f.Confidence}

	// (a) dynamic: confident and spatially steady
	o.updateDynamic(f)
	obs.Jitter = maxPairwiseDeviation(o.dynCenters)
	if len(o.dynCenters) == o.config.JitterWindow && obs.Jitter <= o.config.MaxJitterPx {
		o.resetStatic()
		o.resetSpatial()
		obs.SupportingFrames = len(o.dynCenters)
		return Decision{Present: true, Source: SourceDynamic, Observation: obs}
	}

	// (b) static: low motion and low positional variance
	o.updateStatic(f)
	if o.staticRun >= o.config.StaticRequiredFrames {
		o.resetSpatial()
		obs.SupportingFrames = o.staticRun
		return Decision{Present: true, Source: SourceStatic, Observation: obs}
	}

	// (c) spatial: occupancy mask overlaps the previous one
	o.updateSpatial(f)
	obs.SpatialEvidence = o.spatialRun > 0
	if o.spatialRun >= o.config.SpatialRequiredFrames {
		obs.SupportingFrames = o.spatialRun
		return Decision{Present: true, Source: SourceSpatial, Observation: obs}
	}

	obs.SupportingFrames = max(o.dynRun, o.staticRun, o.spatialRun)
	return Decision{Reason: o.absentReason(), Observation: obs}
}

func (o *Observer) absentReason() AbsentReason {
	switch {
	case o.dynRun > 0 && len(o.dynCenters) < o.config.JitterWindow:
		return ReasonWarmingUp
	case o.dynRun > 0:
		return ReasonInsufficientStability
	case o.staticRun > 0 || o.spatialRun > 0:
		return ReasonWarmingUp
	}
	return ReasonNoPresence
}

// report emits telemetry only when the decision changes.
func (o *Observer) report(d Decision) {
	if o.reported && d.Present == o.lastPresent && d.Source == o.lastSource && d.Reason == o.lastReason {
		return
	}
	o.reported = true
	o.lastPresent, o.lastSource, o.lastReason = d.Present, d.Source, d.Reason
	if d.Present {
		o.port.Emit(d.Observation.Timestamp, telemetry.PhasePresence, telemetry.CodePresent, d.Source.Code(), d.Observation.Jitter)
		return
	}
	o.port.Emit(d.Observation.Timestamp, telemetry.PhasePresence, telemetry.CodeAbsent, d.Reason.Code(), float64(d.Observation.SupportingFrames))
}

// Counters returns the current hysteresis counters.
func (o *Observer) Counters() Counters {
	return Counters{Dynamic: o.dynRun, Static: o.staticRun, Spatial: o.spatialRun}
}

// Reset clears every sub-observer and the timestamp history.
func (o *Observer) Reset() {
	o.dynCenters = o.dynCenters[:0]
	o.dynRun = 0
	o.resetStatic()
	o.resetSpatial()
	o.lastTS = 0
	o.hasLast = false
	o.reported = false
	o.lastPresent = false
	o.lastSource = SourceNone
	o.lastReason = ReasonNone
}
// #endregion observer

// #region sub-observers
func (o *Observer) updateDynamic(f frame.Frame) {
	if f.Center == nil || f.Confidence < o.config.MinConfidence {
		o.dynCenters = o.dynCenters[:0]
		o.dynRun = 0
		return
	}
	o.dynCenters = pushWindow(o.dynCenters, *f.Center, o.config.JitterWindow)
	o.dynRun++
}

func (o *Observer) updateStatic(f frame.Frame) {
	if f.Center == nil || f.Speed >= o.config.StaticMaxSpeed {
		o.resetStatic()
		return
	}
	o.staticCenters = pushWindow(o.staticCenters, *f.Center, o.config.StaticWindow)
	if positionalVariance(o.staticCenters) > o.config.StaticMaxVariance {
		o.staticRun = 0
		return
	}
	o.staticRun++
}

func (o *Observer) updateSpatial(f frame.Frame) {
	if len(f.Mask) == 0 {
		o.resetSpatial()
		return
	}
	cur := maskSet(f.Mask)
	if o.prevMask != nil && jaccard(o.prevMask, cur) >= o.config.SpatialMinOverlap {
		o.spatialRun++
	} else {
		o.spatialRun = 0
	}
	o.prevMask = cur
}

func (o *Observer) resetStatic() {
	o.staticCenters = o.staticCenters[:0]
	o.staticRun = 0
}

func (o *Observer) resetSpatial() {
	o.prevMask = nil
	o.spatialRun = 0
}
// #endregion sub-observers

// #region helpers
// pushWindow appends p and keeps at most n trailing points.
func pushWindow(buf []frame.Point, p frame.Point, n int) []frame.Point {
	buf = append(buf, p)
	if len(buf) > n {
		copy(buf, buf[len(buf)-n:])
		buf = buf[:n]
	}
	return buf
}

func maxPairwiseDeviation(pts []frame.Point) float64 {
	var worst float64
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			if d := pts[i].Distance(pts[j]); d > worst {
				worst = d
			}
		}
	}
	return worst
}

// positionalVariance is the mean squared distance from the centroid.
func positionalVariance(pts []frame.Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var mean frame.Point
	for _, p := range pts {
		mean = mean.Add(p)
	}
	mean = mean.Scale(1 / float64(len(pts)))
	var sum float64
	for _, p := range pts {
		d := p.Sub(mean)
		sum += d.Dot(d)
	}
	return sum / float64(len(pts))
}

func maskSet(mask []int) map[int]struct{} {
	s := make(map[int]struct{}, len(mask))
	for _, idx := range mask {
		s[idx] = struct{}{}
	}
	return s
}

// jaccard returns |a∩b| / |a∪b|; two empty sets overlap by 0.
func jaccard(a, b map[int]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
// #endregion helpers
