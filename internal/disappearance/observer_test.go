package disappearance

import (
	"testing"

	"github.com/launchlab/shotcore/internal/telemetry"
)

func TestDisarmedObservesNothing(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	if _, ok := o.Observe(1, false, false); ok {
		t.Fatal("disarmed observer must not report")
	}
}

func TestCameraUnstableAbortsWindow(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	o.Arm()
	obs, ok := o.Observe(1, false, false)
	if !ok {
		t.Fatal("expected a report")
	}
	if obs.CameraStable || obs.Disappeared {
		t.Fatalf("camera instability must report non-disappearance, got %+v", obs)
	}
	if o.Armed() {
		t.Fatal("window must close after reporting")
	}
}

func TestBallAbsentReportsDisappearance(t *testing.T) {
	o := NewObserver(DefaultConfig(), telemetry.Port{})
	o.Arm()
	if _, ok := o.Observe(1, true, true); ok {
		t.Fatal("visible ball inside the window must not report")
	}
	obs, ok := o.Observe(2, false, true)
	if !ok || !obs.Disappeared || obs.FramesSinceImpact != 2 {
		t.Fatalf("expected disappearance on frame 2, got %+v ok=%v", obs, ok)
	}
	if _, ok := o.Observe(3, false, true); ok {
		t.Fatal("observer reports once per armed window")
	}
}

func TestWindowExpiry(t *testing.T) {
	cfg := Config{WindowFrames: 3}
	var events []telemetry.Event
	o := NewObserver(cfg, telemetry.NewPort(telemetry.SinkFunc(func(e telemetry.Event) {
		events = append(events, e)
	})))
	o.Arm()
	var (
		obs Observation
		ok  bool
	)
	for i := 1; i <= 3; i++ {
		obs, ok = o.Observe(float64(i), true, true)
	}
	if !ok || obs.Disappeared || !obs.CameraStable {
		t.Fatalf("expected expiry report without disappearance, got %+v", obs)
	}
	if len(events) != 1 || events[0].Code != telemetry.CodeDisappearance {
		t.Fatalf("expected one disappearance event, got %+v", events)
	}
	if o.Frames() != 0 {
		t.Fatal("window counter must reset")
	}
}
