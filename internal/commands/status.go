package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var zoneID string

	cmd := &cobra.Command{
		Use:   "status [zone-id]",
		Short: "Show the latest cycle, per-zone risk, and open constraint events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				zoneID = args[0]
			}
			return runStatus(zoneID)
		},
	}
	return cmd
}

func runStatus(zoneID string) error {
	p, err := loadProject(".")
	if err != nil {
		return err
	}

	st, err := buildStore(p.cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = st.Stop(ctx) }()

	if zoneID != "" {
		if _, ok := p.graph.Zone(zoneID); !ok {
			return fmt.Errorf("unknown zone %q", zoneID)
		}
		return showZoneStatus(ctx, st, zoneID)
	}
	return showOverview(ctx, st, p)
}

func showOverview(ctx context.Context, st store.Store, p *project) error {
	bold := color.New(color.Bold)

	summary, err := st.LatestCycleSummary(ctx)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("No cycles have run yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading latest cycle: %w", err)
	}

	_, _ = bold.Printf("Latest cycle: %s\n", summary.CycleID)
	fmt.Printf("  Completed: %s  ok=%d degraded=%d failed=%d skipped=%d\n",
		summary.CompletedAt.Format(time.RFC3339),
		summary.OK, summary.Degraded, summary.Failed, summary.Skipped)
	fmt.Println()

	_, _ = bold.Println("Zones:")
	for _, z := range p.graph.Zones() {
		riskStr := color.YellowString("UNKNOWN")
		rs, err := st.GetRiskScore(ctx, z.ID)
		if err == nil {
			riskStr = riskString(rs)
		}
		fmt.Printf("  %-12s %-28s priority=%d critical=%v\n",
			z.ID, riskStr, z.GridPriority, z.IsCritical())
	}

	events, err := st.ListEvents(ctx, store.EventQuery{State: "open"})
	if err != nil {
		return fmt.Errorf("listing open events: %w", err)
	}
	if len(events) > 0 {
		fmt.Println()
		_, _ = bold.Println("Open constraint events:")
		for _, ev := range events {
			fmt.Printf("  %-12s %-10s %s since %s\n",
				ev.ZoneID, ev.Metric, tierString(ev.Severity),
				ev.StartedAt.Format(time.RFC3339))
		}
	}

	fmt.Println()
	return nil
}

func showZoneStatus(ctx context.Context, st store.Store, zoneID string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Zone: %s\n", zoneID)

	if rs, err := st.GetRiskScore(ctx, zoneID); err == nil {
		fmt.Printf("  Risk: %s (cycle %s)\n", riskString(rs), rs.CycleID)
		for name, contribution := range rs.Factors {
			fmt.Printf("    %-16s %+.2f\n", name, contribution)
		}
	} else {
		fmt.Println("  Risk: no score yet")
	}

	if f, err := st.GetForecast(ctx, zoneID); err == nil {
		fmt.Printf("  Forecast: %.1f in %dm (%s, rmse %.2f)\n",
			f.Predicted, f.HorizonMinutes, f.Model, f.RMSE)
	}

	if set, err := st.GetRecommendations(ctx, zoneID); err == nil && len(set.Actions) > 0 {
		fmt.Println()
		_, _ = bold.Println("  Recommendations:")
		for _, rec := range set.Actions {
			fmt.Printf("    %d. [%s] %s\n", rec.Priority, rec.Class, rec.Action)
		}
	}

	alerts, _ := st.ListAlerts(ctx, store.AlertQuery{ZoneID: zoneID, Limit: 5})
	if len(alerts) > 0 {
		fmt.Println()
		_, _ = bold.Println("  Recent alerts:")
		for _, a := range alerts {
			fmt.Printf("    %s  %s  %s\n",
				a.Timestamp.Format(time.RFC3339), tierString(a.Severity), a.Summary)
		}
	}

	fmt.Println()
	return nil
}

func riskString(rs *types.RiskScore) string {
	label := fmt.Sprintf("%s (%.1f)", rs.Tier, rs.Score)
	switch rs.Tier {
	case types.RiskHigh:
		return color.RedString(label)
	case types.RiskMedium:
		return color.YellowString(label)
	default:
		return color.GreenString(label)
	}
}

func tierString(t types.PolicyTier) string {
	switch t {
	case types.TierEmergency, types.TierAlert:
		return color.RedString(string(t))
	case types.TierWatch:
		return color.YellowString(string(t))
	default:
		return color.CyanString(string(t))
	}
}
