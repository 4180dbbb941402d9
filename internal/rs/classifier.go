package rs

import (
	"math"

	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region classifier
// Classifier assigns exactly one outcome to every RS frame. It holds no state
// between frames.
type Classifier struct {
	config ClassifierConfig
	port   telemetry.Port
}

// NewClassifier creates a classifier.
func NewClassifier(config ClassifierConfig, port telemetry.Port) *Classifier {
	return &Classifier{config: config, port: port}
}

// Classify evaluates the refusal rules in priority order; the first match wins.
func (c *Classifier) Classify(ts float64, m frame.RSMetrics) FrameObservation {
	outcome := c.outcome(m)
	if reason, refused := outcome.Reason(); refused {
		c.port.Emit(ts, telemetry.PhaseRS, telemetry.CodeRSLocality, float64(reason), m.PeakShear)
	} else {
		c.port.Emit(ts, telemetry.PhaseRS, telemetry.CodeRSMetric, m.PeakShear, m.ShearDerivative)
	}
	return FrameObservation{Timestamp: ts, Metrics: m, Outcome: outcome}
}

func (c *Classifier) outcome(m frame.RSMetrics) Outcome {
	// 1. Data-integrity floor
	if m.ValidRowCount < c.config.MinValidRows {
		return Refused(RefusalInsufficientRowSupport)
	}

	// Non-finite metrics would slip through every comparison below.
	if !finite(m.PeakShear, m.ShearDerivative, m.RowCorrelation, m.GlobalVariance, m.LocalVariance) {
		return Refused(RefusalFrameIntegrityFailure)
	}

	// 2. Scene-global signal, consistent with lighting
	if m.RowCorrelation > c.config.FlickerRowCorrelation && m.GlobalVariance > m.LocalVariance {
		return Refused(RefusalFlickerAligned)
	}

	// 3. No spatial anchor
	if m.Centroid == nil {
		return Refused(RefusalLocalityUnstable)
	}

	// 4. Impulse present but not uniquely attributable
	if m.ShearDerivative > 0 && m.PeakShear > 0 {
		return Refused(RefusalImpulseAmbiguous)
	}

	return Observable()
}
// #endregion classifier

// #region helpers
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
// #endregion helpers
