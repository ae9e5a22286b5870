// Package config handles loading and validation of gridpulse.yaml project
// configuration plus the policy and topology documents it references.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gridpulse/gridpulse/internal/policy"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// Load reads and parses gridpulse.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "gridpulse.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadPolicy reads, parses, and validates the policy document at path.
// Relative paths are resolved against dir.
func LoadPolicy(dir, path string) (types.Policy, error) {
	data, err := os.ReadFile(resolve(dir, path))
	if err != nil {
		return types.Policy{}, fmt.Errorf("reading policy: %w", err)
	}

	var pol types.Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return types.Policy{}, fmt.Errorf("parsing policy: %w", err)
	}
	if err := policy.Validate(pol); err != nil {
		return types.Policy{}, fmt.Errorf("validating policy: %w", err)
	}
	return pol, nil
}

// topologyFile is the on-disk shape of the topology document.
type topologyFile struct {
	Zones []types.Zone          `yaml:"zones"`
	Edges []types.AdjacencyEdge `yaml:"edges"`
}

// LoadTopology reads the topology document at path and builds the zone graph.
// Relative paths are resolved against dir.
func LoadTopology(dir, path string) (*topology.Graph, error) {
	data, err := os.ReadFile(resolve(dir, path))
	if err != nil {
		return nil, fmt.Errorf("reading topology: %w", err)
	}

	var tf topologyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}

	graph, err := topology.New(tf.Zones, tf.Edges)
	if err != nil {
		return nil, fmt.Errorf("validating topology: %w", err)
	}
	return graph, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.Store {
	case "":
		return fmt.Errorf("store is required (memory, redis, or dynamodb)")
	case "memory":
	case "redis":
		if cfg.Redis == nil {
			return fmt.Errorf("redis config is required when store is redis")
		}
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
		if cfg.Redis.RetentionTTL != "" {
			if _, err := time.ParseDuration(cfg.Redis.RetentionTTL); err != nil {
				return fmt.Errorf("redis.retentionTtl: %w", err)
			}
		}
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		if cfg.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required")
		}
		if cfg.DynamoDB.RetentionTTL != "" {
			if _, err := time.ParseDuration(cfg.DynamoDB.RetentionTTL); err != nil {
				return fmt.Errorf("dynamodb.retentionTtl: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.PolicyFile == "" {
		return fmt.Errorf("policyFile is required")
	}
	if cfg.TopologyFile == "" {
		return fmt.Errorf("topologyFile is required")
	}

	if cfg.Scheduler != nil && cfg.Scheduler.Interval != "" {
		if _, err := time.ParseDuration(cfg.Scheduler.Interval); err != nil {
			return fmt.Errorf("scheduler.interval: %w", err)
		}
	}
	if cfg.Scheduler != nil && cfg.Scheduler.CycleBudget != "" {
		if _, err := time.ParseDuration(cfg.Scheduler.CycleBudget); err != nil {
			return fmt.Errorf("scheduler.cycleBudget: %w", err)
		}
	}
	if cfg.Archiver != nil && cfg.Archiver.Enabled {
		if cfg.Archiver.DSN == "" {
			return fmt.Errorf("archiver.dsn is required when archiver is enabled")
		}
		if cfg.Archiver.Interval != "" {
			if _, err := time.ParseDuration(cfg.Archiver.Interval); err != nil {
				return fmt.Errorf("archiver.interval: %w", err)
			}
		}
	}
	if cfg.Ingest != nil && cfg.Ingest.Enabled {
		if len(cfg.Ingest.Brokers) == 0 {
			return fmt.Errorf("ingest.brokers is required when ingest is enabled")
		}
		if cfg.Ingest.Topic == "" {
			return fmt.Errorf("ingest.topic is required when ingest is enabled")
		}
	}
	for i, sink := range cfg.Alerts {
		switch sink.Type {
		case types.SinkConsole:
		case types.SinkWebhook:
			if sink.URL == "" {
				return fmt.Errorf("alerts[%d]: webhook sink requires url", i)
			}
		case types.SinkFile:
			if sink.Path == "" {
				return fmt.Errorf("alerts[%d]: file sink requires path", i)
			}
		default:
			return fmt.Errorf("alerts[%d]: unknown sink type %q", i, sink.Type)
		}
	}

	return nil
}
