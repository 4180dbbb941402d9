package replay

import (
	"fmt"

	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/lifecycle"
	"github.com/launchlab/shotcore/internal/telemetry"
)

// #region types
// Result is one terminal decision produced during a replay.
type Result struct {
	FrameIndex int
	Label      string // "finalized" | "refused:<reason>"
	Decision   lifecycle.Decision
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalFrames int
	Decisions   int
	Finalized   int
	Refused     int
	ByReason    map[lifecycle.RefusalReason]int
}

// Mismatch is one position where replayed labels diverge from expectations.
type Mismatch struct {
	Position int
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("decision %d: expected %s, got %s", m.Position, orNone(m.Expected), orNone(m.Actual))
}
// #endregion types

// #region replay
// Run feeds frames in order through a fresh controller. Telemetry goes to
// sink when it is non-nil. Operates entirely in-memory.
func Run(frames []frame.Frame, config lifecycle.Config, sink telemetry.Sink) []Result {
	var port telemetry.Port
	if sink != nil {
		port = telemetry.NewPort(sink)
	}
	c := lifecycle.NewController(config, port)

	var results []Result
	for i, f := range frames {
		d, ok := c.Process(f)
		if !ok {
			continue
		}
		results = append(results, Result{FrameIndex: i, Label: d.Label(), Decision: d})
	}
	return results
}

// RunFixture replays f over base, applying the fixture's overrides.
func RunFixture(f *Fixture, base lifecycle.Config, sink telemetry.Sink) []Result {
	return Run(f.Frames, f.Config.Apply(base), sink)
}

// Compare lines results up with the expected labels.
func Compare(expected []string, results []Result) []Mismatch {
	var out []Mismatch
	for i := 0; i < max(len(expected), len(results)); i++ {
		var want, got string
		if i < len(expected) {
			want = expected[i]
		}
		if i < len(results) {
			got = results[i].Label
		}
		if want != got {
			out = append(out, Mismatch{Position: i, Expected: want, Actual: got})
		}
	}
	return out
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, totalFrames int) Summary {
	s := Summary{
		TotalFrames: totalFrames,
		Decisions:   len(results),
		ByReason:    make(map[lifecycle.RefusalReason]int),
	}
	for _, r := range results {
		if r.Decision.Finalized() {
			s.Finalized++
			continue
		}
		s.Refused++
		s.ByReason[r.Decision.Refusal]++
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
// #endregion replay
