package frame

import (
	"math"
	"testing"
)

func TestPointUnit(t *testing.T) {
	u, ok := Point{X: 3, Y: 4}.Unit()
	if !ok {
		t.Fatal("expected unit vector")
	}
	if math.Abs(u.X-0.6) > 1e-9 || math.Abs(u.Y-0.8) > 1e-9 {
		t.Fatalf("unexpected unit vector %+v", u)
	}
}

func TestPointUnit_Zero(t *testing.T) {
	if _, ok := (Point{}).Unit(); ok {
		t.Fatal("zero vector has no direction")
	}
}

func TestPointDistance(t *testing.T) {
	d := Point{X: 1, Y: 1}.Distance(Point{X: 4, Y: 5})
	if d != 5 {
		t.Fatalf("expected 5, got %f", d)
	}
}

func TestRowEnvelopeSpanFraction(t *testing.T) {
	e := RowEnvelope{StartRow: 10, EndRow: 29, TotalRows: 100}
	if got := e.SpanFraction(); got != 0.2 {
		t.Fatalf("expected 0.2, got %f", got)
	}
	if got := (RowEnvelope{StartRow: 5, EndRow: 2, TotalRows: 10}).SpanFraction(); got != 0 {
		t.Fatalf("inverted envelope should be 0, got %f", got)
	}
}

func TestPhaseValid(t *testing.T) {
	if !PhaseImpact.Valid() || !PhaseUnknown.Valid() {
		t.Fatal("known phases must be valid")
	}
	if Phase("swing").Valid() {
		t.Fatal("unknown phase string must be invalid")
	}
}
