package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/launchlab/shotcore/internal/telemetry"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.csv[:label]>...",
	Short: "Summarize recorded telemetry CSV files",
	Long: `Reads telemetry CSV files (as written by export or replay --telemetry) and
prints one summary row per file. A label may follow the path after a colon;
otherwise the file name is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

// #region analyze
func runAnalyze(_ *cobra.Command, args []string) error {
	var sums []telemetry.Summary
	for _, arg := range args {
		path, label := splitLabel(arg)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		events, err := telemetry.ReadCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		sums = append(sums, telemetry.Summarize(label, events))
	}

	if jsonOut {
		return printJSON(sums)
	}
	fmt.Printf("%-20s| %-7s| %-7s| %-7s| %-5s| %-5s| %-10s| %-10s| %-5s| %s\n",
		"Label", "Frames", "RSRef", "Windows", "Pass", "Fail", "PeakShear", "PeakStruct", "Final", "Refused")
	fmt.Println(strings.Repeat("-", 20) + "+" + strings.Repeat("-", 8) + "+" + strings.Repeat("-", 8) + "+" +
		strings.Repeat("-", 8) + "+" + strings.Repeat("-", 6) + "+" + strings.Repeat("-", 6) + "+" +
		strings.Repeat("-", 11) + "+" + strings.Repeat("-", 11) + "+" + strings.Repeat("-", 6) + "+" + strings.Repeat("-", 8))
	for _, s := range sums {
		fmt.Printf("%-20s| %-7d| %-7d| %-7d| %-5d| %-5d| %-10.4f| %-10.4f| %-5d| %d\n",
			s.Label, s.RSFrames, s.RSRefusals, s.Windows, s.Pass, s.Fail,
			s.PeakWindowShear, s.PeakStructure, s.Finalized, s.Refused)
	}
	return nil
}

// splitLabel separates "path:label". A Windows drive prefix such as C:\ is
// part of the path, not a label separator.
func splitLabel(arg string) (string, string) {
	offset := 0
	if hasDrivePrefix(arg) {
		offset = 2
	}
	if i := strings.LastIndex(arg[offset:], ":"); i >= 0 {
		i += offset
		return arg[:i], arg[i+1:]
	}
	return arg, strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
}

func hasDrivePrefix(arg string) bool {
	if len(arg) < 3 || arg[1] != ':' || (arg[2] != '\\' && arg[2] != '/') {
		return false
	}
	c := arg[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
// #endregion analyze
