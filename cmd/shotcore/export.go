package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/launchlab/shotcore/internal/logging"
	"github.com/launchlab/shotcore/internal/session"
	"github.com/launchlab/shotcore/internal/telemetry"
)

var (
	exportDB      string
	exportSession string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a session's telemetry as CSV",
	Long: `Loads the telemetry events persisted for a session and writes them in the
CSV layout read by analyze. Without --session the newest session is exported.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDB, "db", "", "database path (defaults to store.path from config)")
	exportCmd.Flags().StringVar(&exportSession, "session", "", "session id (default: newest)")
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output file, or - for stdout")
	rootCmd.AddCommand(exportCmd)
}

// #region export
func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := exportDB
	if path == "" {
		path = cfg.Store.Path
	}
	store, err := session.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := pickSession(cmd.Context(), store, exportSession)
	if err != nil {
		return err
	}
	events, err := logging.LoadEvents(cmd.Context(), store.DB(), sess.ID)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}
	if err := telemetry.WriteCSV(w, events); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if exportOut != "-" {
		fmt.Fprintf(os.Stderr, "exported %d events from session %s to %s\n", len(events), shortID(sess.ID), exportOut)
	}
	return nil
}
// #endregion export
