package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/launchlab/shotcore/internal/hud"
	"github.com/launchlab/shotcore/internal/lifecycle"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running engine's HUD",
	Long: `Connects to the gRPC HUD of a running serve process, prints the current
engine state, then prints every decision as it is made until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "gRPC HUD address (defaults to hud.grpc_addr from config)")
	rootCmd.AddCommand(watchCmd)
}

// #region watch
func runWatch(cmd *cobra.Command, _ []string) error {
	addr := watchAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.HUD.GRPCAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := hud.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	stateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	snap, err := client.State(stateCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("get state from %s: %w", addr, err)
	}
	if jsonOut {
		if err := printJSON(snap); err != nil {
			return err
		}
	} else {
		fmt.Printf("Engine at %s: state=%s intent=%s frames=%d accepted=%d refused=%d\n\n",
			addr, snap.State, snap.Intent, snap.Frames, snap.Accepted, snap.Refused)
		fmt.Printf("%-10s| %-24s| %-10s| %s\n", "At", "Outcome", "Shot", "Detail")
		fmt.Printf("%-10s+%-25s+%-11s+%s\n", "----------", "-------------------------", "-----------", "--------")
	}

	err = client.WatchDecisions(ctx, func(d lifecycle.Decision) error {
		if jsonOut {
			return printJSON(d)
		}
		shot := "-"
		if d.Summary != nil {
			shot = shortID(d.Summary.ShotID)
		}
		fmt.Printf("%-10.3f| %-24s| %-10s| %s\n", d.Timestamp, d.Label(), shot, orDash(d.Detail))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return fmt.Errorf("watch decisions: %w", err)
	}
	return nil
}
// #endregion watch
