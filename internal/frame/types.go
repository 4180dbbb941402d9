package frame

import "math"

// #region point
// Point is a 2D image-space coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Scale returns p * k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return p.Sub(q).Norm()
}

// Unit returns p normalized to length 1, and false when p has no length.
func (p Point) Unit() (Point, bool) {
	n := p.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Point{}, false
	}
	return Point{X: p.X / n, Y: p.Y / n}, true
}
// #endregion point

// #region phase
// Phase is the coarse motion-density signal supplied alongside each frame.
type Phase string

const (
	PhaseUnknown    Phase = ""
	PhaseIdle       Phase = "idle"
	PhaseApproach   Phase = "approach"
	PhaseImpact     Phase = "impact"
	PhaseSeparation Phase = "separation"
	PhaseStabilized Phase = "stabilized"
)

// Valid reports whether p is one of the known phases (unknown included).
func (p Phase) Valid() bool {
	switch p {
	case PhaseUnknown, PhaseIdle, PhaseApproach, PhaseImpact, PhaseSeparation, PhaseStabilized:
		return true
	}
	return false
}
// #endregion phase

// #region rs-metrics
// RowEnvelope bounds the rows that carried RS shear in a frame.
type RowEnvelope struct {
	StartRow  int `json:"start_row"`
	EndRow    int `json:"end_row"`
	TotalRows int `json:"total_rows"`
}

// SpanFraction is the fraction of sensor rows covered by the envelope.
// Returns 0 for a degenerate envelope.
func (e RowEnvelope) SpanFraction() float64 {
	if e.TotalRows <= 0 || e.EndRow < e.StartRow {
		return 0
	}
	return float64(e.EndRow-e.StartRow+1) / float64(e.TotalRows)
}

// RSMetrics is one frame's rolling-shutter row analysis, computed upstream.
type RSMetrics struct {
	PeakShear       float64      `json:"zmax"`
	ShearDerivative float64      `json:"dz"`
	RowCorrelation  float64      `json:"row_correlation"`
	GlobalVariance  float64      `json:"global_variance"`
	LocalVariance   float64      `json:"local_variance"`
	ValidRowCount   int          `json:"valid_rows"`
	DroppedRowCount int          `json:"dropped_rows"`
	Centroid        *Point       `json:"centroid,omitempty"`
	Envelope        *RowEnvelope `json:"envelope,omitempty"`
}
// #endregion rs-metrics

// #region frame
// Frame bundles every measurement the collaborators hand to the core for one
// sensor frame. Optional measurements are nil when the collaborator had none.
type Frame struct {
	Timestamp    float64    `json:"t"`
	Center       *Point     `json:"center,omitempty"`
	Confidence   float64    `json:"confidence"`
	Speed        float64    `json:"speed"`
	Mask         []int      `json:"mask,omitempty"`
	RS           *RSMetrics `json:"rs,omitempty"`
	CameraStable bool       `json:"camera_stable"`
	Phase        Phase      `json:"phase,omitempty"`
}
// #endregion frame
