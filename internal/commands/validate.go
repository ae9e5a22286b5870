package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate gridpulse.yaml, the policy document, and the topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func runValidate() error {
	p, err := loadProject(".")
	if err != nil {
		color.Red("✗ %v", err)
		return err
	}

	color.Green("✓ gridpulse.yaml valid (store: %s)", p.cfg.Store)
	color.Green("✓ policy %q valid (%d metrics)", p.policy.Name, len(p.policy.Metrics))
	color.Green("✓ topology valid (%d zones)", p.graph.Len())

	if p.cfg.Scheduler == nil || !p.cfg.Scheduler.Enabled {
		color.Yellow("  scheduler disabled: cycles run only via the API or the cycle command")
	}
	if len(p.cfg.Alerts) == 0 {
		color.Yellow("  no alert sinks configured")
	}

	fmt.Println()
	return nil
}
