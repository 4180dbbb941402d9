package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/launchlab/shotcore/internal/replay"
	"github.com/launchlab/shotcore/internal/telemetry"
)

var replayTelemetry string

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>...",
	Short: "Replay frame fixtures and compare decisions",
	Long: `Runs every fixture through a fresh controller and prints expected versus
replayed decisions. Exits 1 when any fixture diverges.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayTelemetry, "telemetry", "", "write the replayed telemetry to this CSV file (single fixture only)")
	rootCmd.AddCommand(replayCmd)
}

// #region replay
type replayReport struct {
	Fixture     string            `json:"fixture"`
	Description string            `json:"description"`
	Summary     replay.Summary    `json:"summary"`
	Rows        []comparisonRow   `json:"rows"`
	Mismatches  []replay.Mismatch `json:"mismatches,omitempty"`
}

type comparisonRow struct {
	Position int     `json:"position"`
	Frame    int     `json:"frame"`
	At       float64 `json:"at"`
	Expected string  `json:"expected"`
	Replayed string  `json:"replayed"`
	Match    bool    `json:"match"`
}

func runReplay(_ *cobra.Command, args []string) error {
	if replayTelemetry != "" && len(args) > 1 {
		return fmt.Errorf("--telemetry takes a single fixture, got %d", len(args))
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var (
		reports  []replayReport
		diverged bool
	)
	for _, path := range args {
		f, err := replay.LoadFixture(path)
		if err != nil {
			return err
		}
		var ring *telemetry.Ring
		var sink telemetry.Sink
		if replayTelemetry != "" {
			ring = telemetry.NewRing(cfg.Engine.RingCapacity)
			sink = ring
		}

		results := replay.RunFixture(f, cfg.Lifecycle, sink)
		rep := buildReport(path, f, results)
		if len(rep.Mismatches) > 0 {
			diverged = true
		}
		reports = append(reports, rep)

		if ring != nil {
			if err := writeTelemetry(replayTelemetry, ring.Snapshot()); err != nil {
				return err
			}
		}
	}

	if jsonOut {
		if err := printJSON(reports); err != nil {
			return err
		}
	} else {
		for _, rep := range reports {
			printComparison(rep)
		}
	}
	if diverged {
		return exitCode(1)
	}
	return nil
}

func buildReport(path string, f *replay.Fixture, results []replay.Result) replayReport {
	rep := replayReport{
		Fixture:     filepath.Base(path),
		Description: f.Description,
		Summary:     replay.Summarize(results, len(f.Frames)),
		Mismatches:  replay.Compare(f.Expected, results),
	}
	for i := 0; i < max(len(f.Expected), len(results)); i++ {
		row := comparisonRow{Position: i, Frame: -1}
		if i < len(f.Expected) {
			row.Expected = f.Expected[i]
		}
		if i < len(results) {
			row.Frame = results[i].FrameIndex
			row.At = results[i].Decision.Timestamp
			row.Replayed = results[i].Label
		}
		row.Match = row.Expected == row.Replayed
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}
// #endregion replay

// #region output
func printComparison(rep replayReport) {
	fmt.Printf("%s: %s\n", rep.Fixture, rep.Description)
	fmt.Printf("%-4s| %-6s| %-10s| %-32s| %-32s| %s\n", "#", "Frame", "At", "Expected", "Replayed", "Match")
	fmt.Printf("%-4s+%-7s+%-11s+%-33s+%-33s+%s\n",
		"----", "-------", "-----------", "---------------------------------", "---------------------------------", "------")
	for _, r := range rep.Rows {
		match := "DIFF"
		if r.Match {
			match = "OK"
		}
		frame := "-"
		if r.Frame >= 0 {
			frame = fmt.Sprintf("%d", r.Frame)
		}
		fmt.Printf("%-4d| %-6s| %-10.4f| %-32s| %-32s| %s\n",
			r.Position, frame, r.At, orDash(r.Expected), orDash(r.Replayed), match)
	}
	s := rep.Summary
	fmt.Printf("\nSummary: %d frames, %d decisions (%d finalized, %d refused), %d diverge\n\n",
		s.TotalFrames, s.Decisions, s.Finalized, s.Refused, len(rep.Mismatches))
}

func writeTelemetry(path string, events []telemetry.Event) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := telemetry.WriteCSV(out, events); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
// #endregion output
