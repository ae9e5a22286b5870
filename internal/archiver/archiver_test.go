package archiver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/store/memory"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// mockDest records calls for testing without a real Postgres.
type mockDest struct {
	mu        sync.Mutex
	alerts    []types.Alert
	events    []types.ConstraintEvent
	scores    []types.RiskScore
	summaries []types.CycleSummary
	alertErr  error
}

func (m *mockDest) UpsertAlert(_ context.Context, a types.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alertErr != nil {
		return m.alertErr
	}
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *mockDest) UpsertEvent(_ context.Context, ev types.ConstraintEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockDest) UpsertRiskScore(_ context.Context, rs types.RiskScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, rs)
	return nil
}

func (m *mockDest) UpsertCycleSummary(_ context.Context, s types.CycleSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
	return nil
}

func testGraph(t *testing.T) *topology.Graph {
	t.Helper()
	g, err := topology.New([]types.Zone{{ID: "za", GridPriority: 1}}, nil)
	require.NoError(t, err)
	return g
}

func seed(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	_, err := st.PutAlert(ctx, types.Alert{
		AlertID: "c1:za:threshold_breach:aqi", ZoneID: "za",
		Kind: types.AlertThresholdBreach, Severity: types.TierAlert,
		CycleID: "c1", Timestamp: now,
	})
	require.NoError(t, err)

	_, _, err = st.OpenEvent(ctx, types.ConstraintEvent{
		EventID: "ev:c1:za:aqi", ZoneID: "za", Metric: types.MetricAQI,
		Severity: types.TierAlert, CycleID: "c1", StartedAt: now,
	})
	require.NoError(t, err)

	require.NoError(t, st.PutRiskScore(ctx, types.RiskScore{
		ZoneID: "za", Score: 42, BaseScore: 40, Tier: types.RiskMedium,
		CycleID: "c1", ComputedAt: now,
	}))

	require.NoError(t, st.PutCycleSummary(ctx, types.CycleSummary{
		CycleID: "c1", StartedAt: now, CompletedAt: now,
		Zones: []types.ZoneCycleStatus{{ZoneID: "za", Status: types.ZoneOK}},
		OK:    1,
	}))
}

func TestNewParsesInterval(t *testing.T) {
	g := testGraph(t)

	a := New(memory.New(), &mockDest{}, g, types.ArchiverConfig{Interval: "90s"}, nil)
	assert.Equal(t, 90*time.Second, a.interval)

	// Empty and unparsable intervals fall back to the default.
	a = New(memory.New(), &mockDest{}, g, types.ArchiverConfig{}, nil)
	assert.Equal(t, defaultInterval, a.interval)

	a = New(memory.New(), &mockDest{}, g, types.ArchiverConfig{Interval: "soon"}, nil)
	assert.Equal(t, defaultInterval, a.interval)
}

func TestArchiverCopiesEverything(t *testing.T) {
	st := memory.New()
	seed(t, st)
	dest := &mockDest{}

	a := New(st, dest, testGraph(t), types.ArchiverConfig{Interval: "1h"}, slog.Default())
	a.tick(context.Background())

	assert.Len(t, dest.alerts, 1)
	assert.Len(t, dest.events, 1)
	assert.Len(t, dest.scores, 1)
	assert.Len(t, dest.summaries, 1)
	assert.Equal(t, "c1:za:threshold_breach:aqi", dest.alerts[0].AlertID)
}

func TestArchiverTickIsIdempotent(t *testing.T) {
	st := memory.New()
	seed(t, st)
	dest := &mockDest{}

	a := New(st, dest, testGraph(t), types.ArchiverConfig{Interval: "1h"}, slog.Default())
	a.tick(context.Background())
	a.tick(context.Background())

	// Upsert semantics: the destination sees the same records again, which a
	// real backend collapses on its primary keys.
	assert.Len(t, dest.summaries, 2)
	assert.Equal(t, dest.summaries[0].CycleID, dest.summaries[1].CycleID)
}

func TestArchiverDestErrorDoesNotStopOthers(t *testing.T) {
	st := memory.New()
	seed(t, st)
	dest := &mockDest{alertErr: errors.New("connection refused")}

	a := New(st, dest, testGraph(t), types.ArchiverConfig{Interval: "1h"}, slog.Default())
	a.tick(context.Background())

	assert.Empty(t, dest.alerts)
	assert.Len(t, dest.events, 1)
	assert.Len(t, dest.summaries, 1)
}

func TestArchiverStartStop(t *testing.T) {
	st := memory.New()
	seed(t, st)
	dest := &mockDest{}

	a := New(st, dest, testGraph(t), types.ArchiverConfig{Interval: "1h"}, slog.Default())
	a.Start(context.Background())

	require.Eventually(t, func() bool {
		dest.mu.Lock()
		defer dest.mu.Unlock()
		return len(dest.summaries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	a.Stop(context.Background())
}
