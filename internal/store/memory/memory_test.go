package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

func TestLatestReadingsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendReading(ctx, types.Reading{
			ZoneID: "z1", Metric: types.MetricEnergy,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Value:     float64(i),
		}))
	}

	rs, err := s.LatestReadings(ctx, "z1", types.MetricEnergy, 3)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, 4.0, rs[0].Value)
	assert.Equal(t, 2.0, rs[2].Value)
}

func TestOpenEventAtMostOnePerZoneMetric(t *testing.T) {
	s := New()
	ctx := context.Background()

	ev := types.ConstraintEvent{
		EventID: "e1", ZoneID: "z1", Metric: types.MetricAQI,
		Severity: types.TierAlert, StartedAt: time.Now(),
	}
	got, created, err := s.OpenEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "e1", got.EventID)

	// Second open for the same (zone, metric) returns the existing event,
	// escalating severity when the new one is higher.
	ev2 := ev
	ev2.EventID = "e2"
	ev2.Severity = types.TierEmergency
	got, created, err = s.OpenEvent(ctx, ev2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "e1", got.EventID)
	assert.Equal(t, types.TierEmergency, got.Severity)

	open, err := s.ListEvents(ctx, store.EventQuery{State: "open"})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCloseEventMovesToClosed(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _, err := s.OpenEvent(ctx, types.ConstraintEvent{
		EventID: "e1", ZoneID: "z1", Metric: types.MetricAQI,
		Severity: types.TierWatch, StartedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, s.CloseEvent(ctx, "z1", types.MetricAQI, time.Now()))

	_, err = s.GetOpenEvent(ctx, "z1", types.MetricAQI)
	assert.ErrorIs(t, err, store.ErrNotFound)

	closed, err := s.ListEvents(ctx, store.EventQuery{State: "closed"})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.False(t, closed[0].Open())
}

func TestPutAlertIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := types.Alert{AlertID: "c1:z1:threshold_breach:aqi", ZoneID: "z1", Timestamp: time.Now()}
	created, err := s.PutAlert(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.PutAlert(ctx, a)
	require.NoError(t, err)
	assert.False(t, created)

	alerts, err := s.ListAlerts(ctx, store.AlertQuery{ZoneID: "z1"})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestResolveAlertsByZoneMetricKind(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	for _, a := range []types.Alert{
		{AlertID: "c1:z1:threshold_breach:energy", ZoneID: "z1", Kind: types.AlertThresholdBreach, Metric: types.MetricEnergy, Timestamp: now},
		{AlertID: "c1:z1:anomaly:energy", ZoneID: "z1", Kind: types.AlertAnomaly, Metric: types.MetricEnergy, Timestamp: now},
		{AlertID: "c1:z2:threshold_breach:energy", ZoneID: "z2", Kind: types.AlertThresholdBreach, Metric: types.MetricEnergy, Timestamp: now},
	} {
		_, err := s.PutAlert(ctx, a)
		require.NoError(t, err)
	}

	n, err := s.ResolveAlerts(ctx, "z1", types.MetricEnergy, types.AlertThresholdBreach)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Only z1's breach alert flipped; the anomaly and the other zone stay open.
	open, err := s.ListAlerts(ctx, store.AlertQuery{Resolved: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, a := range open {
		assert.NotEqual(t, "c1:z1:threshold_breach:energy", a.AlertID)
	}

	// Already-resolved alerts are not counted again.
	n, err = s.ResolveAlerts(ctx, "z1", types.MetricEnergy, types.AlertThresholdBreach)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func boolPtr(b bool) *bool { return &b }

func TestRiskHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.PutRiskScore(ctx, types.RiskScore{
			ZoneID: "z1", Score: float64(10 * i), CycleID: "c", ComputedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	latest, err := s.GetRiskScore(ctx, "z1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, latest.Score)

	hist, err := s.ListRiskHistory(ctx, "z1", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 20.0, hist[0].Score)
	assert.Equal(t, 10.0, hist[1].Score)
}

func TestLockAcquireRelease(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.AcquireLock(ctx, "cycle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLock(ctx, "cycle", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseLock(ctx, "cycle"))
	ok, err = s.AcquireLock(ctx, "cycle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
