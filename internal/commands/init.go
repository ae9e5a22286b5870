package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const initValkeyTimeout = 60 * time.Second

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var skipValkey bool

	cmd := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new GridPulse project",
		Long:  "Creates project scaffolding and optionally starts a local Valkey container.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0], skipValkey)
		},
	}

	cmd.Flags().BoolVar(&skipValkey, "skip-valkey", false, "Skip starting Valkey container")
	return cmd
}

func runInit(projectName string, skipValkey bool) error {
	bold := color.New(color.Bold)

	_, _ = bold.Printf("Initializing GridPulse project: %s\n", projectName)

	if err := os.MkdirAll(projectName, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	configContent := `store: redis
redis:
  addr: localhost:6379
  keyPrefix: "gridpulse:"
server:
  addr: ":3000"
scheduler:
  enabled: true
  interval: 5m
  cycleBudget: 2m
policyFile: policy.yaml
topologyFile: topology.yaml
alerts:
  - type: console
`
	if err := os.WriteFile(filepath.Join(projectName, "gridpulse.yaml"), []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	policyContent := `name: default
closeAfterCycles: 3
metrics:
  - metric: energy
    tiers:
      - tier: WATCH
        trigger: 500
        actions: [monitor]
      - tier: ALERT
        trigger: 800
        actions: [stage_reserves]
      - tier: EMERGENCY
        trigger: 1000
        actions: [shed_load]
  - metric: aqi
    tiers:
      - tier: WATCH
        trigger: 101
      - tier: ALERT
        trigger: 151
        actions: [issue_air_advisory]
      - tier: EMERGENCY
        trigger: 201
        actions: [restrict_emissions]
`
	if err := os.WriteFile(filepath.Join(projectName, "policy.yaml"), []byte(policyContent), 0o644); err != nil {
		return fmt.Errorf("writing policy: %w", err)
	}

	topologyContent := `zones:
  - id: downtown
    name: Downtown
    gridPriority: 1
    criticalSites: [general-hospital, water-treatment]
  - id: riverside
    name: Riverside
    gridPriority: 3
  - id: industrial-park
    name: Industrial Park
    gridPriority: 4
edges:
  - {from: downtown, to: riverside}
  - {from: riverside, to: downtown}
  - {from: riverside, to: industrial-park}
  - {from: industrial-park, to: riverside}
`
	if err := os.WriteFile(filepath.Join(projectName, "topology.yaml"), []byte(topologyContent), 0o644); err != nil {
		return fmt.Errorf("writing topology: %w", err)
	}

	color.Green("  ✓ Project scaffolded")

	// Start Valkey container
	if !skipValkey {
		if err := startValkey(); err != nil {
			color.Yellow("  ⚠ Valkey setup skipped: %v", err)
			color.Yellow("    Run manually: docker run -d --name gridpulse-valkey -p 6379:6379 valkey/valkey:8")
		} else {
			color.Green("  ✓ Valkey container started")
		}
	} else {
		color.Yellow("  → Valkey setup skipped (--skip-valkey)")
	}

	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  gridpulse validate")
	fmt.Println("  gridpulse serve")
	return nil
}

func startValkey() error {
	// Check Docker availability
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found in PATH")
	}

	// Check if container already exists
	checkCmd := exec.Command("docker", "inspect", "gridpulse-valkey")
	if checkCmd.Run() == nil {
		// Container exists, try starting it
		startCmd := exec.Command("docker", "start", "gridpulse-valkey")
		if err := startCmd.Run(); err != nil {
			return fmt.Errorf("starting existing container: %w", err)
		}
		return nil
	}

	// Create and start new container
	ctx, cancel := context.WithTimeout(context.Background(), initValkeyTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "run", "-d",
		"--name", "gridpulse-valkey",
		"-p", "6379:6379",
		"valkey/valkey:8",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
