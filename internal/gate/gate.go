package gate

import (
	"fmt"
	"math"

	"github.com/launchlab/shotcore/internal/rs"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region gate
// Gate turns an RS window observation into a pass/fail verdict. It is a pure
// function of the window; the struct only carries configuration.
type Gate struct {
	config Config
	port   telemetry.Port
}

// NewGate creates a gate with the given configuration.
func NewGate(config Config, port telemetry.Port) *Gate {
	return &Gate{config: config, port: port}
}

// Evaluate checks every required condition. All must hold for a pass.
func (g *Gate) Evaluate(w rs.WindowObservation) Decision {
	var failures []Failure
	ratio := peakToMedian(w)

	// 1. Enough observable frames
	if w.ObservableFrameCount < g.config.MinFrames {
		failures = append(failures, Failure{
			Condition: ConditionFrameCount,
			Reason:    fmt.Sprintf("observable frames %d below minimum %d", w.ObservableFrameCount, g.config.MinFrames),
		})
	}

	// 2. Structure: count or consistency floor
	if w.StructuredFrameCount < g.config.MinStructuredFrames && w.StructureConsistency < g.config.MinStructureConsistency {
		failures = append(failures, Failure{
			Condition: ConditionStructure,
			Reason: fmt.Sprintf("structured frames %d < %d and consistency %.3f < %.3f",
				w.StructuredFrameCount, g.config.MinStructuredFrames, w.StructureConsistency, g.config.MinStructureConsistency),
		})
	}

	// 3. Absolute physical floor
	if w.PeakShear <= g.config.MinPeakShear {
		failures = append(failures, Failure{
			Condition: ConditionPeakFloor,
			Reason:    fmt.Sprintf("peak shear %.4f not above floor %.4f", w.PeakShear, g.config.MinPeakShear),
		})
	}

	// 4. Peak must stand out from the median (uniform energy looks like flicker)
	if ratio <= g.config.MinPeakToMedian {
		failures = append(failures, Failure{
			Condition: ConditionPeakSeparation,
			Reason:    fmt.Sprintf("peak/median %.3f not above %.3f", ratio, g.config.MinPeakToMedian),
		})
	}

	// 5. Wide-span dominated with weak structure
	if w.WideSpanFraction >= g.config.WideDominanceFraction && w.StructureConsistency < g.config.FlickerMaxStructure {
		failures = append(failures, Failure{
			Condition: ConditionFlickerFallback,
			Reason: fmt.Sprintf("wide-span fraction %.3f with structure %.3f",
				w.WideSpanFraction, w.StructureConsistency),
		})
	}

	if len(failures) > 0 {
		g.port.Emit(w.EndTime, telemetry.PhaseGate, telemetry.CodeGateFail, w.PeakShear, failures[0].Condition.Code())
		return Decision{
			Pass:         false,
			Reason:       fmt.Sprintf("%s: %s", failures[0].Condition, failures[0].Reason),
			Failures:     failures,
			PeakToMedian: ratio,
			WindowEnd:    w.EndTime,
		}
	}

	g.port.Emit(w.EndTime, telemetry.PhaseGate, telemetry.CodeGatePass, w.PeakShear, w.StructureConsistency)
	return Decision{
		Pass:         true,
		Reason:       fmt.Sprintf("passed gate: peak=%.4f structure=%.3f", w.PeakShear, w.StructureConsistency),
		PeakToMedian: ratio,
		WindowEnd:    w.EndTime,
	}
}
// #endregion gate

// #region helpers
// peakToMedian returns peak/median, +Inf for a zero median with positive peak
// and 0 for an empty window.
func peakToMedian(w rs.WindowObservation) float64 {
	if w.MedianShear <= 0 {
		if w.PeakShear > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return w.PeakShear / w.MedianShear
}
// #endregion helpers
