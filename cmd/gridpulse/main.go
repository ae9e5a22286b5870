package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridpulse/gridpulse/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "gridpulse",
		Short: "Zone risk and constraint-aware alert pipeline for urban grids",
		Long: `GridPulse runs a recurring assessment cycle over a fixed set of city zones:
it forecasts energy demand, flags anomalous consumption, evaluates policy
thresholds with hysteresis, scores composite risk with neighbor spillover,
and publishes ranked recommended actions per zone.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewValidateCmd(),
		commands.NewCycleCmd(),
		commands.NewStatusCmd(),
		commands.NewServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
