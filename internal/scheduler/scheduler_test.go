package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gridpulse/gridpulse/internal/anomaly"
	"github.com/gridpulse/gridpulse/internal/forecast"
	"github.com/gridpulse/gridpulse/internal/pipeline"
	"github.com/gridpulse/gridpulse/internal/policy"
	"github.com/gridpulse/gridpulse/internal/risk"
	"github.com/gridpulse/gridpulse/internal/store/memory"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

func testPipeline(t *testing.T, st *memory.Store) *pipeline.Pipeline {
	t.Helper()
	g, err := topology.New([]types.Zone{{ID: "za", GridPriority: 1}}, nil)
	require.NoError(t, err)

	pol := types.Policy{
		Name: "test",
		Metrics: []types.MetricPolicy{{
			Metric: types.MetricEnergy,
			Tiers:  []types.TierThreshold{{Tier: types.TierWatch, Trigger: 500}},
		}},
	}
	logger := slog.Default()
	return pipeline.New(pipeline.Config{}, st, g,
		forecast.NewEngine(forecast.Config{}, logger),
		anomaly.NewDetector(anomaly.Config{}, logger),
		policy.NewEngine(st, pol, logger),
		risk.NewEngine(risk.Config{}),
		nil, logger)
}

func TestSchedulerRunsImmediatelyAndStopsClean(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := memory.New()
	s := New(st, testPipeline(t, st), time.Hour, slog.Default())

	s.Start(context.Background())

	// The first cycle runs on start, not on the first tick.
	require.Eventually(t, func() bool {
		_, err := st.LatestCycleSummary(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
}

func TestSchedulerSkipsWhenLockHeld(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := memory.New()
	held, err := st.AcquireLock(context.Background(), lockKey, time.Hour)
	require.NoError(t, err)
	require.True(t, held)

	s := New(st, testPipeline(t, st), time.Hour, slog.Default())
	s.Start(context.Background())

	// Lock held by "another replica": no cycle may run.
	time.Sleep(100 * time.Millisecond)
	_, err = st.LatestCycleSummary(context.Background())
	assert.Error(t, err)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
}

func TestSchedulerDefaultInterval(t *testing.T) {
	st := memory.New()
	s := New(st, testPipeline(t, st), 0, nil)
	assert.Equal(t, 5*time.Minute, s.interval)
}
