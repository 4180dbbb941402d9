package presence

import (
	"testing"

	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/telemetry"
)

const dt = 1.0 / 240

func pt(x, y float64) *frame.Point {
	return &frame.Point{X: x, Y: y}
}

// steadyFrame is a confident center that alternates by 1px.
func steadyFrame(i int) frame.Frame {
	return frame.Frame{
		Timestamp:    float64(i+1) * dt,
		Center:       pt(400+float64(i%2), 300),
		Confidence:   150,
		CameraStable: true,
	}
}

func TestDynamicPresenceAfterWindowFills(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	for i := 0; i < 4; i++ {
		d := o.Observe(steadyFrame(i))
		if d.Present {
			t.Fatalf("frame %d: present before window filled", i)
		}
		if d.Reason != ReasonWarmingUp {
			t.Fatalf("frame %d: expected warming_up, got %q", i, d.Reason)
		}
	}
	d := o.Observe(steadyFrame(4))
	if !d.Present || d.Source != SourceDynamic {
		t.Fatalf("expected dynamic presence, got %+v", d)
	}
	if d.Observation.Jitter != 1 {
		t.Fatalf("expected jitter 1, got %f", d.Observation.Jitter)
	}
}

func TestDynamicPresenceClearsLowerCounters(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	for i := 0; i < 10; i++ {
		f := steadyFrame(i)
		f.Mask = []int{1, 2, 3, 4}
		d := o.Observe(f)
		if d.Present {
			c := o.Counters()
			if c.Static != 0 || c.Spatial != 0 {
				t.Fatalf("frame %d: lower counters not cleared: %+v", i, c)
			}
		}
	}
}

func TestInsufficientStability(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	var d Decision
	for i := 0; i < 6; i++ {
		f := steadyFrame(i)
		f.Center = pt(400+float64(i)*5, 300)
		f.Speed = 1200
		d = o.Observe(f)
	}
	if d.Present {
		t.Fatal("moving center must not be present")
	}
	if d.Reason != ReasonInsufficientStability {
		t.Fatalf("expected insufficient_stability, got %q", d.Reason)
	}
}

func TestStaticPresence(t *testing.T) {
	cfg := DefaultConfig()
	o := NewObserver(cfg, telemetry.Port{})
	var d Decision
	for i := 0; i < cfg.StaticRequiredFrames; i++ {
		d = o.Observe(frame.Frame{
			Timestamp:  float64(i+1) * dt,
			Center:     pt(200, 200),
			Confidence: 20, // below the dynamic threshold
			Speed:      0.5,
		})
		if i < cfg.StaticRequiredFrames-1 && d.Present {
			t.Fatalf("frame %d: static present too early", i)
		}
	}
	if !d.Present || d.Source != SourceStatic {
		t.Fatalf("expected static presence, got %+v", d)
	}
	if o.Counters().Spatial != 0 {
		t.Fatal("static success must clear spatial counter")
	}
}

func TestSpatialPresence(t *testing.T) {
	cfg := DefaultConfig()
	o := NewObserver(cfg, telemetry.Port{})
	mask := []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	var d Decision
	for i := 0; i <= cfg.SpatialRequiredFrames; i++ {
		d = o.Observe(frame.Frame{Timestamp: float64(i+1) * dt, Mask: mask})
	}
	if !d.Present || d.Source != SourceSpatial {
		t.Fatalf("expected spatial presence, got %+v", d)
	}
	if !d.Observation.SpatialEvidence {
		t.Fatal("expected spatial evidence flag")
	}
}

func TestSpatialOverlapBreaks(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	o.Observe(frame.Frame{Timestamp: dt, Mask: []int{1, 2, 3, 4}})
	o.Observe(frame.Frame{Timestamp: 2 * dt, Mask: []int{1, 2, 3, 4}})
	if o.Counters().Spatial != 1 {
		t.Fatalf("expected spatial run 1, got %d", o.Counters().Spatial)
	}
	d := o.Observe(frame.Frame{Timestamp: 3 * dt, Mask: []int{50, 51, 52, 53}})
	if o.Counters().Spatial != 0 {
		t.Fatal("disjoint mask must reset spatial run")
	}
	if d.Reason != ReasonNoPresence {
		t.Fatalf("expected no_presence, got %q", d.Reason)
	}
}

func TestNoPresence(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	d := o.Observe(frame.Frame{Timestamp: dt})
	if d.Present || d.Reason != ReasonNoPresence {
		t.Fatalf("expected no_presence, got %+v", d)
	}
}

func TestNonMonotonicTimestampResets(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	for i := 0; i < 4; i++ {
		o.Observe(steadyFrame(i))
	}
	f := steadyFrame(0)
	o.Observe(f)
	if o.Counters().Dynamic != 1 {
		t.Fatalf("expected counters restarted, got %+v", o.Counters())
	}
}

func TestResetClearsCounters(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	for i := 0; i < 3; i++ {
		f := steadyFrame(i)
		f.Confidence = 10
		f.Mask = []int{1, 2}
		o.Observe(f)
	}
	if o.Counters().Zero() {
		t.Fatal("expected non-zero counters before reset")
	}
	o.Reset()
	if !o.Counters().Zero() {
		t.Fatalf("expected zero counters, got %+v", o.Counters())
	}
}

func TestTelemetryOnlyOnChange(t *testing.T) {
	var events []telemetry.Event
	o := NewObserver(DefaultConfig(), telemetry.NewPort(telemetry.SinkFunc(func(e telemetry.Event) {
		events = append(events, e)
	})))
	for i := 0; i < 8; i++ {
		o.Observe(steadyFrame(i))
	}
	// warming_up once, then present once
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Code != telemetry.CodeAbsent || events[1].Code != telemetry.CodePresent {
		t.Fatalf("unexpected codes %+v", events)
	}
}

func TestJaccard(t *testing.T) {
	a := maskSet([]int{1, 2, 3, 4})
	b := maskSet([]int{3, 4, 5, 6})
	if got := jaccard(a, b); got != 2.0/6.0 {
		t.Fatalf("expected 1/3, got %f", got)
	}
	if got := jaccard(map[int]struct{}{}, map[int]struct{}{}); got != 0 {
		t.Fatalf("empty sets should overlap by 0, got %f", got)
	}
}
