// Package commands implements the CLI subcommands for the gridpulse binary.
package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gridpulse/gridpulse/internal/anomaly"
	"github.com/gridpulse/gridpulse/internal/config"
	"github.com/gridpulse/gridpulse/internal/forecast"
	"github.com/gridpulse/gridpulse/internal/pipeline"
	"github.com/gridpulse/gridpulse/internal/policy"
	"github.com/gridpulse/gridpulse/internal/risk"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/store/dynamo"
	"github.com/gridpulse/gridpulse/internal/store/memory"
	redisstore "github.com/gridpulse/gridpulse/internal/store/redis"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// project bundles everything loaded from a project directory.
type project struct {
	cfg    *types.ProjectConfig
	policy types.Policy
	graph  *topology.Graph
}

// loadProject reads gridpulse.yaml plus the policy and topology documents it
// references from dir.
func loadProject(dir string) (*project, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	pol, err := config.LoadPolicy(dir, cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	graph, err := config.LoadTopology(dir, cfg.TopologyFile)
	if err != nil {
		return nil, fmt.Errorf("loading topology: %w", err)
	}
	return &project{cfg: cfg, policy: pol, graph: graph}, nil
}

// buildStore creates the configured storage backend.
func buildStore(cfg *types.ProjectConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), nil
	case "redis":
		return redisstore.New(cfg.Redis, logger), nil
	case "dynamodb":
		return dynamo.New(cfg.DynamoDB, logger)
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// buildPipeline assembles the assessment pipeline from project config.
func buildPipeline(p *project, st store.Store, alertFn func(types.Alert), logger *slog.Logger) *pipeline.Pipeline {
	var fcfg forecast.Config
	if fc := p.cfg.Forecast; fc != nil {
		fcfg = forecast.Config{
			HorizonMinutes: fc.HorizonMinutes,
			MinSamples:     fc.MinSamples,
			SeasonPeriod:   fc.SeasonPeriod,
			ArtifactPath:   fc.ArtifactPath,
		}
	}

	var acfg anomaly.Config
	if ac := p.cfg.Anomaly; ac != nil {
		acfg = anomaly.Config{
			RatioThreshold:     ac.RatioThreshold,
			MinBaselineSamples: ac.MinBaselineSamples,
			ArtifactPath:       ac.ArtifactPath,
		}
	}

	var rcfg risk.Config
	if rc := p.cfg.Risk; rc != nil {
		rcfg = risk.Config{
			Damping:           rc.Damping,
			PropagationRounds: rc.PropagationRounds,
			HighCutoff:        rc.HighCutoff,
			MediumCutoff:      rc.MediumCutoff,
			MaxPriority:       rc.MaxPriority,
			MaxCriticalSites:  rc.MaxCriticalSites,
			MaxOpenAlerts:     rc.MaxOpenAlerts,
			Weights:           rc.Weights,
		}
	}

	var pcfg pipeline.Config
	if sc := p.cfg.Scheduler; sc != nil {
		pcfg.MaxParallel = sc.MaxParallel
		pcfg.CycleBudget = parseDuration(sc.CycleBudget, 0)
	}
	if p.cfg.Forecast != nil {
		pcfg.WindowSize = p.cfg.Forecast.WindowSize
	}

	return pipeline.New(pcfg, st, p.graph,
		forecast.NewEngine(fcfg, logger),
		anomaly.NewDetector(acfg, logger),
		policy.NewEngine(st, p.policy, logger),
		risk.NewEngine(rcfg),
		alertFn,
		logger,
	)
}

// parseDuration parses raw, returning def when raw is empty or invalid.
// Config validation already rejects malformed durations at load time.
func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
