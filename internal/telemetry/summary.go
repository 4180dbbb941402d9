package telemetry

// Summary aggregates one recorded run for offline review.
type Summary struct {
	Label           string  `json:"label"`
	RSFrames        int     `json:"rs_frames"`
	RSRefusals      int     `json:"rs_refusals"`
	Windows         int     `json:"windows"`
	Pass            int     `json:"pass"`
	Fail            int     `json:"fail"`
	PeakWindowShear float64 `json:"peak_window_shear"`
	PeakStructure   float64 `json:"peak_structure"`
	Finalized       int     `json:"finalized"`
	Refused         int     `json:"refused"`
}

// Summarize counts frame, window and verdict events. Events with a
// non-positive timestamp are ignored as uninitialized rows.
func Summarize(label string, events []Event) Summary {
	s := Summary{Label: label}
	for _, e := range events {
		if e.Timestamp <= 0 {
			continue
		}
		switch e.Code {
		case CodeRSMetric:
			s.RSFrames++
		case CodeRSLocality:
			s.RSRefusals++
		case CodeWindowSummary:
			s.Windows++
			if e.ValueA > s.PeakWindowShear {
				s.PeakWindowShear = e.ValueA
			}
			if e.ValueB > s.PeakStructure {
				s.PeakStructure = e.ValueB
			}
		case CodeGatePass:
			s.Pass++
		case CodeGateFail:
			s.Fail++
		case CodeFinalized:
			s.Finalized++
		case CodeRefused:
			s.Refused++
		}
	}
	return s
}
