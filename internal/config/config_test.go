package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gridpulse.yaml", `store: redis
redis:
  addr: localhost:6379
  keyPrefix: "gridpulse:"
server:
  addr: ":3000"
scheduler:
  enabled: true
  interval: 5m
policyFile: policy.yaml
topologyFile: topology.yaml
alerts:
  - type: console
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store)
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "gridpulse:", cfg.Redis.KeyPrefix)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Len(t, cfg.Alerts, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gridpulse.yaml", "invalid: [yaml")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing store",
			content: "policyFile: p.yaml\ntopologyFile: t.yaml\n",
			wantErr: "store is required",
		},
		{
			name:    "unknown store",
			content: "store: etcd\npolicyFile: p.yaml\ntopologyFile: t.yaml\n",
			wantErr: "unknown store",
		},
		{
			name:    "redis without config",
			content: "store: redis\npolicyFile: p.yaml\ntopologyFile: t.yaml\n",
			wantErr: "redis config is required",
		},
		{
			name:    "dynamodb without table",
			content: "store: dynamodb\ndynamodb:\n  region: us-east-1\npolicyFile: p.yaml\ntopologyFile: t.yaml\n",
			wantErr: "dynamodb.tableName is required",
		},
		{
			name:    "bad redis retention ttl",
			content: "store: redis\nredis:\n  addr: localhost:6379\n  retentionTtl: weekly\npolicyFile: p.yaml\ntopologyFile: t.yaml\n",
			wantErr: "redis.retentionTtl",
		},
		{
			name:    "bad dynamodb retention ttl",
			content: "store: dynamodb\ndynamodb:\n  tableName: gp\n  retentionTtl: monthly\npolicyFile: p.yaml\ntopologyFile: t.yaml\n",
			wantErr: "dynamodb.retentionTtl",
		},
		{
			name:    "missing policy file",
			content: "store: memory\ntopologyFile: t.yaml\n",
			wantErr: "policyFile is required",
		},
		{
			name:    "bad scheduler interval",
			content: "store: memory\npolicyFile: p.yaml\ntopologyFile: t.yaml\nscheduler:\n  interval: soon\n",
			wantErr: "scheduler.interval",
		},
		{
			name:    "archiver enabled without dsn",
			content: "store: memory\npolicyFile: p.yaml\ntopologyFile: t.yaml\narchiver:\n  enabled: true\n",
			wantErr: "archiver.dsn is required",
		},
		{
			name:    "ingest enabled without brokers",
			content: "store: memory\npolicyFile: p.yaml\ntopologyFile: t.yaml\ningest:\n  enabled: true\n  topic: readings\n",
			wantErr: "ingest.brokers is required",
		},
		{
			name:    "webhook sink without url",
			content: "store: memory\npolicyFile: p.yaml\ntopologyFile: t.yaml\nalerts:\n  - type: webhook\n",
			wantErr: "webhook sink requires url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "gridpulse.yaml", tt.content)

			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "policy.yaml", `name: default
closeAfterCycles: 3
metrics:
  - metric: energy
    tiers:
      - tier: WATCH
        trigger: 500
      - tier: ALERT
        trigger: 800
      - tier: EMERGENCY
        trigger: 1000
`)

	pol, err := LoadPolicy(dir, "policy.yaml")
	require.NoError(t, err)
	assert.Equal(t, "default", pol.Name)
	require.NotNil(t, pol.Metric(types.MetricEnergy))

	trigger, ok := pol.Metric(types.MetricEnergy).Trigger(types.TierWatch)
	require.True(t, ok)
	assert.Equal(t, 500.0, trigger)
}

func TestLoadPolicyRejectsUnorderedTiers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "policy.yaml", `name: broken
metrics:
  - metric: energy
    tiers:
      - tier: WATCH
        trigger: 900
      - tier: ALERT
        trigger: 800
`)

	_, err := LoadPolicy(dir, "policy.yaml")
	assert.Error(t, err)
}

func TestLoadTopology(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "topology.yaml", `zones:
  - id: za
    gridPriority: 1
    criticalSites: [hospital]
  - id: zb
    gridPriority: 3
edges:
  - {from: za, to: zb}
  - {from: zb, to: za}
`)

	graph, err := LoadTopology(dir, "topology.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, graph.Len())
	assert.Equal(t, []string{"zb"}, graph.Neighbors("za"))
}

func TestLoadTopologyRejectsMissingReverseEdge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "topology.yaml", `zones:
  - id: za
    gridPriority: 1
  - id: zb
    gridPriority: 2
edges:
  - {from: za, to: zb}
`)

	_, err := LoadTopology(dir, "topology.yaml")
	assert.Error(t, err)
}
