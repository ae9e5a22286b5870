package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gridpulse/gridpulse/internal/alert"
	"github.com/gridpulse/gridpulse/pkg/types"
)

const cycleLockKey = "cycle:runner"

// NewCycleCmd creates the cycle command.
func NewCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one assessment cycle and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleOnce()
		},
	}
}

func runCycleOnce() error {
	p, err := loadProject(".")
	if err != nil {
		return err
	}

	logger := slog.Default()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, err := buildStore(p.cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = st.Stop(ctx) }()

	dispatcher, err := alert.NewDispatcher(p.cfg.Alerts, logger)
	if err != nil {
		return fmt.Errorf("creating alert dispatcher: %w", err)
	}
	pl := buildPipeline(p, st, dispatcher.AlertFunc(), logger)

	acquired, err := st.AcquireLock(ctx, cycleLockKey, 10*time.Minute)
	if err != nil {
		return fmt.Errorf("acquiring cycle lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another cycle is already running")
	}
	defer func() { _ = st.ReleaseLock(ctx, cycleLockKey) }()

	summary, err := pl.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	printCycleSummary(summary)
	return nil
}

func printCycleSummary(s *types.CycleSummary) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Cycle %s\n", s.CycleID)
	fmt.Printf("  Started:   %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Printf("  Completed: %s (%s)\n",
		s.CompletedAt.Format(time.RFC3339), s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Println()

	for _, z := range s.Zones {
		statusStr := string(z.Status)
		switch z.Status {
		case types.ZoneOK:
			statusStr = color.GreenString(statusStr)
		case types.ZoneDegraded:
			statusStr = color.YellowString(statusStr)
		case types.ZoneFailed:
			statusStr = color.RedString(statusStr)
		case types.ZoneSkipped:
			statusStr = color.YellowString(statusStr)
		}
		line := fmt.Sprintf("  %-12s %s", z.ZoneID, statusStr)
		if z.Detail != "" {
			line += "  " + z.Detail
		}
		fmt.Println(line)
	}

	fmt.Println()
	fmt.Printf("  ok=%d degraded=%d failed=%d skipped=%d\n",
		s.OK, s.Degraded, s.Failed, s.Skipped)
}
