package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/anomaly"
	"github.com/gridpulse/gridpulse/internal/forecast"
	"github.com/gridpulse/gridpulse/internal/policy"
	"github.com/gridpulse/gridpulse/internal/risk"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/store/memory"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

func testPolicy() types.Policy {
	return types.Policy{
		Name:             "test",
		CloseAfterCycles: 3,
		Metrics: []types.MetricPolicy{
			{
				Metric: types.MetricEnergy,
				Tiers: []types.TierThreshold{
					{Tier: types.TierWatch, Trigger: 500},
					{Tier: types.TierAlert, Trigger: 800},
					{Tier: types.TierEmergency, Trigger: 1000},
				},
			},
			{
				Metric: types.MetricAQI,
				Tiers: []types.TierThreshold{
					{Tier: types.TierWatch, Trigger: 101},
					{Tier: types.TierAlert, Trigger: 151},
					{Tier: types.TierEmergency, Trigger: 201},
				},
			},
		},
	}
}

func testGraph(t *testing.T) *topology.Graph {
	t.Helper()
	g, err := topology.New(
		[]types.Zone{
			{ID: "za", GridPriority: 1, CriticalSites: []string{"hospital"}},
			{ID: "zb", GridPriority: 3},
			{ID: "zc", GridPriority: 5},
		},
		[]types.AdjacencyEdge{
			{From: "za", To: "zb"}, {From: "zb", To: "za"},
			{From: "zb", To: "zc"}, {From: "zc", To: "zb"},
		},
	)
	require.NoError(t, err)
	return g
}

type fixture struct {
	store    *memory.Store
	pipeline *Pipeline
	alerts   []types.Alert
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st := memory.New()
	f := &fixture{store: st}
	logger := slog.Default()

	pol := policy.NewEngine(st, testPolicy(), logger)
	f.pipeline = New(cfg, st, testGraph(t),
		forecast.NewEngine(forecast.Config{MinSamples: 24}, logger),
		anomaly.NewDetector(anomaly.Config{}, logger),
		pol,
		risk.NewEngine(risk.Config{}),
		func(a types.Alert) { f.alerts = append(f.alerts, a) },
		logger,
	)
	return f
}

// seedHourly appends n hourly energy readings ending at the given value
// series' last element (oldest first).
func seedHourly(t *testing.T, st *memory.Store, zoneID string, metric types.Metric, values []float64) {
	t.Helper()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		require.NoError(t, st.AppendReading(context.Background(), types.Reading{
			ZoneID: zoneID, Metric: metric,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Value:     v,
		}))
	}
}

func ramp(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestRunCycleHappyPath(t *testing.T) {
	f := newFixture(t, Config{})
	seedHourly(t, f.store, "za", types.MetricEnergy, ramp(100, 24))
	seedHourly(t, f.store, "za", types.MetricAQI, []float64{50})

	summary, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.CycleID)

	// za has data: OK. zb and zc have none: degraded (no forecast).
	assert.Equal(t, 1, summary.OK)
	assert.Equal(t, 2, summary.Degraded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Zones, 3)

	fc, err := f.store.GetForecast(context.Background(), "za")
	require.NoError(t, err)
	assert.Equal(t, summary.CycleID, fc.CycleID)
	assert.InDelta(t, 124.0, fc.Predicted, 0.5)

	// Every non-failed zone gets a risk score and a recommendation set.
	for _, id := range []string{"za", "zb", "zc"} {
		rs, err := f.store.GetRiskScore(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, summary.CycleID, rs.CycleID)

		_, err = f.store.GetRecommendations(context.Background(), id)
		require.NoError(t, err, id)
	}

	stored, err := f.store.LatestCycleSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.CycleID, stored.CycleID)

	// Quiet grid: nothing dispatched.
	assert.Empty(t, f.alerts)
}

func TestRunCycleAirEmergencyEscalates(t *testing.T) {
	f := newFixture(t, Config{})
	seedHourly(t, f.store, "za", types.MetricEnergy, ramp(100, 24))
	seedHourly(t, f.store, "za", types.MetricAQI, []float64{220})

	summary, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	ev, err := f.store.GetOpenEvent(context.Background(), "za", types.MetricAQI)
	require.NoError(t, err)
	assert.Equal(t, types.TierEmergency, ev.Severity)
	assert.Equal(t, summary.CycleID, ev.CycleID)

	require.Len(t, f.alerts, 1)
	assert.Equal(t, types.AlertThresholdBreach, f.alerts[0].Kind)
	assert.Equal(t, types.TierEmergency, f.alerts[0].Severity)

	// The breach shows up in the zone's recommendations.
	set, err := f.store.GetRecommendations(context.Background(), "za")
	require.NoError(t, err)
	assert.Equal(t, types.TierEmergency, set.PolicyTier)

	var hasEmission bool
	for _, a := range set.Actions {
		assert.NotEqual(t, types.ActionLoadShed, a.Class) // hospital zone
		if a.Class == types.ActionEmission {
			hasEmission = true
		}
	}
	assert.True(t, hasEmission)
}

func TestRunCycleAnomalyBecomesAlert(t *testing.T) {
	f := newFixture(t, Config{})

	// Daily readings at the same hour: flat 0.8 baseline, then a 12.3 spike.
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.AppendReading(context.Background(), types.Reading{
			ZoneID: "zb", Metric: types.MetricEnergy,
			Timestamp: base.AddDate(0, 0, i), Value: 0.8,
		}))
	}
	require.NoError(t, f.store.AppendReading(context.Background(), types.Reading{
		ZoneID: "zb", Metric: types.MetricEnergy,
		Timestamp: base.AddDate(0, 0, 5), Value: 12.3,
	}))

	_, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	alerts, err := f.store.ListAlerts(context.Background(), store.AlertQuery{
		ZoneID: "zb", Kind: types.AlertAnomaly,
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Summary, "12.3")

	var dispatched bool
	for _, a := range f.alerts {
		if a.Kind == types.AlertAnomaly {
			dispatched = true
		}
	}
	assert.True(t, dispatched)
}

func TestRunCycleClearedAnomalyResolvesAlert(t *testing.T) {
	f := newFixture(t, Config{})

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.AppendReading(context.Background(), types.Reading{
			ZoneID: "zb", Metric: types.MetricEnergy,
			Timestamp: base.AddDate(0, 0, i), Value: 0.8,
		}))
	}
	require.NoError(t, f.store.AppendReading(context.Background(), types.Reading{
		ZoneID: "zb", Metric: types.MetricEnergy,
		Timestamp: base.AddDate(0, 0, 5), Value: 12.3,
	}))

	_, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	unresolved := false
	open, err := f.store.ListAlerts(context.Background(), store.AlertQuery{
		ZoneID: "zb", Kind: types.AlertAnomaly, Resolved: &unresolved,
	})
	require.NoError(t, err)
	require.Len(t, open, 1)

	// The next day is back at baseline: the cycle resolves the stale alert
	// instead of letting it inflate the open-alert count forever.
	require.NoError(t, f.store.AppendReading(context.Background(), types.Reading{
		ZoneID: "zb", Metric: types.MetricEnergy,
		Timestamp: base.AddDate(0, 0, 6), Value: 0.8,
	}))

	_, err = f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	open, err = f.store.ListAlerts(context.Background(), store.AlertQuery{
		ZoneID: "zb", Kind: types.AlertAnomaly, Resolved: &unresolved,
	})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRunCycleBudgetExhaustedSkipsZones(t *testing.T) {
	f := newFixture(t, Config{CycleBudget: time.Nanosecond})

	summary, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 0, summary.OK)

	// Skipped zones keep no fresh scores.
	_, err = f.store.GetRiskScore(context.Background(), "za")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The summary is still persisted for the operator.
	stored, err := f.store.LatestCycleSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Skipped)
}

func TestRunCycleEveryZoneAppearsOnce(t *testing.T) {
	f := newFixture(t, Config{})

	summary, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	seen := map[string]int{}
	for _, z := range summary.Zones {
		seen[z.ZoneID]++
	}
	assert.Equal(t, map[string]int{"za": 1, "zb": 1, "zc": 1}, seen)
}

func TestRunCycleRiskSpillsToNeighbor(t *testing.T) {
	f := newFixture(t, Config{})
	// Stress za: emergency air quality plus critical sites.
	seedHourly(t, f.store, "za", types.MetricEnergy, ramp(100, 24))
	seedHourly(t, f.store, "za", types.MetricAQI, []float64{220})

	_, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	za, err := f.store.GetRiskScore(context.Background(), "za")
	require.NoError(t, err)
	zb, err := f.store.GetRiskScore(context.Background(), "zb")
	require.NoError(t, err)

	assert.Greater(t, za.Score, zb.Score)
	// zb borders the stressed zone and picks up spillover.
	assert.Greater(t, zb.Score, zb.BaseScore)
}
