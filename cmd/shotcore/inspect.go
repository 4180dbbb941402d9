package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/launchlab/shotcore/internal/lifecycle"
	"github.com/launchlab/shotcore/internal/session"
)

var (
	inspectDB      string
	inspectSession string
	inspectLast    int
	inspectShot    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show session outcomes from the database",
	Long: `Prints the accepted/refused split and the most recent outcomes of a session.
Without --session the newest session is shown. --shot prints one stored shot
summary instead.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "database path (defaults to store.path from config)")
	inspectCmd.Flags().StringVar(&inspectSession, "session", "", "session id (default: newest)")
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "number of recent outcomes to list")
	inspectCmd.Flags().StringVar(&inspectShot, "shot", "", "print a single shot summary")
	rootCmd.AddCommand(inspectCmd)
}

// #region inspect
type inspectReport struct {
	Session    session.Session    `json:"session"`
	Aggregates session.Aggregates `json:"aggregates"`
	AcceptRate float64            `json:"accept_rate"`
	Recent     []session.Outcome  `json:"recent"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := inspectDB
	if path == "" {
		path = cfg.Store.Path
	}
	store, err := session.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := cmd.Context()

	if inspectShot != "" {
		sum, err := store.Shot(ctx, inspectShot)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(sum)
		}
		printShot(sum)
		return nil
	}

	sess, err := pickSession(ctx, store, inspectSession)
	if err != nil {
		return err
	}
	agg, err := store.Aggregates(ctx, sess.ID)
	if err != nil {
		return err
	}
	recent, err := store.Recent(ctx, sess.ID, inspectLast)
	if err != nil {
		return err
	}

	rep := inspectReport{Session: sess, Aggregates: agg, AcceptRate: agg.AcceptRate(), Recent: recent}
	if jsonOut {
		return printJSON(rep)
	}
	printInspect(rep)
	return nil
}

func pickSession(ctx context.Context, store *session.Store, id string) (session.Session, error) {
	sessions, err := store.Sessions(ctx, 1000)
	if err != nil {
		return session.Session{}, err
	}
	if len(sessions) == 0 {
		return session.Session{}, errors.New("no sessions recorded")
	}
	if id == "" {
		return sessions[0], nil
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return session.Session{}, fmt.Errorf("session %s not found", id)
}
// #endregion inspect

// #region output
func printInspect(rep inspectReport) {
	s := rep.Session
	label := s.Label
	if label == "" {
		label = "-"
	}
	fmt.Printf("Session %s (%s) started %s\n\n", s.ID, label, s.StartedAt.Format("2006-01-02 15:04:05"))

	a := rep.Aggregates
	fmt.Printf("%-14s %d\n", "Total:", a.Total)
	fmt.Printf("%-14s %d\n", "Accepted:", a.Accepted)
	fmt.Printf("%-14s %d\n", "Refused:", a.Refused)
	fmt.Printf("%-14s %.1f%%\n", "Accept rate:", rep.AcceptRate*100)

	if len(a.ByReason) > 0 {
		reasons := make([]string, 0, len(a.ByReason))
		for r := range a.ByReason {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		fmt.Println()
		fmt.Printf("%-28s| %s\n", "Refusal reason", "Count")
		fmt.Printf("%-28s+%s\n", "----------------------------", "-------")
		for _, r := range reasons {
			fmt.Printf("%-28s| %d\n", r, a.ByReason[lifecycle.RefusalReason(r)])
		}
	}

	if len(rep.Recent) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("%-10s| %-10s| %-28s| %-10s| %s\n", "Kind", "Shot", "Reason", "At", "Detail")
	fmt.Printf("%-10s+%-11s+%-29s+%-11s+%s\n", "----------", "-----------", "-----------------------------", "-----------", "--------")
	for _, o := range rep.Recent {
		reason := string(o.Refusal)
		if o.Kind == "finalized" {
			reason = "-"
		}
		fmt.Printf("%-10s| %-10s| %-28s| %-10.3f| %s\n",
			o.Kind, shortID(o.ShotID), reason, o.DecidedAt, orDash(o.Detail))
	}
}

func printShot(sum lifecycle.EngineShotSummary) {
	fmt.Printf("%-16s %s\n", "Shot:", sum.ShotID)
	fmt.Printf("%-16s %s\n", "Final state:", sum.FinalState)
	fmt.Printf("%-16s %.4f\n", "Attempt start:", sum.AttemptStart)
	fmt.Printf("%-16s %.4f\n", "Impact:", sum.ImpactAt)
	fmt.Printf("%-16s %.4f\n", "Separated:", sum.SeparatedAt)
	fmt.Printf("%-16s %.4f\n", "Finalized:", sum.FinalizedAt)
	fmt.Printf("%-16s %.1f px/s\n", "Launch speed:", sum.LaunchSpeed)
	fmt.Printf("%-16s (%.3f, %.3f)\n", "Launch dir:", sum.LaunchDir.X, sum.LaunchDir.Y)
	fmt.Printf("%-16s %.1f px\n", "Displacement:", sum.Displacement)
	fmt.Printf("%-16s %.4f / %.4f\n", "RS shear/struct:", sum.RSPeakShear, sum.RSStructure)
	fmt.Printf("%-16s %.1f m/s, %.1f deg, %.1f m\n", "Flight:",
		sum.Flight.BallSpeedMPS, sum.Flight.LaunchAngleDeg, sum.Flight.CarryMeters)
}
// #endregion output
