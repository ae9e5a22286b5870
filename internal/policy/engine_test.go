package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/store/memory"
	"github.com/gridpulse/gridpulse/pkg/types"
)

func aqiPolicy() types.Policy {
	return types.Policy{
		Name:             "default",
		CloseAfterCycles: 3,
		Metrics: []types.MetricPolicy{
			{
				Metric: types.MetricAQI,
				Tiers: []types.TierThreshold{
					{Tier: types.TierWatch, Trigger: 101},
					{Tier: types.TierAlert, Trigger: 151},
					{Tier: types.TierEmergency, Trigger: 201},
				},
			},
			{
				Metric: types.MetricEnergy,
				Tiers: []types.TierThreshold{
					{Tier: types.TierWatch, Trigger: 500},
					{Tier: types.TierAlert, Trigger: 800},
					{Tier: types.TierEmergency, Trigger: 1000},
				},
			},
		},
	}
}

func zoneA() types.Zone {
	return types.Zone{ID: "zone-a", GridPriority: 1, CriticalSites: []string{"hospital"}}
}

func evalAQI(t *testing.T, e *Engine, value float64, cycle string) *Outcome {
	t.Helper()
	out, err := e.Evaluate(context.Background(), Input{
		Zone: zoneA(), Metric: types.MetricAQI, Value: value,
		CycleID: cycle, Now: time.Now(),
	})
	require.NoError(t, err)
	return out
}

func TestEscalationToEmergency(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	// AQI 220 against watch/alert/emergency = 101/151/201.
	out := evalAQI(t, e, 220, "c1")
	assert.Equal(t, types.TierNormal, out.PrevTier)
	assert.Equal(t, types.TierEmergency, out.Tier)
	assert.True(t, out.Opened)
	require.NotNil(t, out.Alert)
	assert.Equal(t, types.TierEmergency, out.Alert.Severity)

	ev, err := st.GetOpenEvent(context.Background(), "zone-a", types.MetricAQI)
	require.NoError(t, err)
	assert.Equal(t, types.TierEmergency, ev.Severity)
}

func TestSameTierIsNoOp(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	evalAQI(t, e, 220, "c1")
	out := evalAQI(t, e, 215, "c2")
	assert.Equal(t, types.TierEmergency, out.Tier)
	assert.False(t, out.Opened)
	assert.Nil(t, out.Alert)

	alerts, err := st.ListAlerts(context.Background(), store.AlertQuery{ZoneID: "zone-a"})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestHysteresisHoldsEventOpen(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	// Breach, then a single clean cycle: the event must stay open.
	evalAQI(t, e, 210, "c1")
	out := evalAQI(t, e, 90, "c2")
	assert.False(t, out.Closed)
	assert.Equal(t, types.TierEmergency, out.Tier)

	_, err := st.GetOpenEvent(context.Background(), "zone-a", types.MetricAQI)
	assert.NoError(t, err)
}

func TestHysteresisClosesAfterWindow(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	evalAQI(t, e, 210, "c1")
	evalAQI(t, e, 90, "c2")
	evalAQI(t, e, 90, "c3")
	out := evalAQI(t, e, 90, "c4")
	assert.True(t, out.Closed)
	assert.Equal(t, types.TierNormal, out.Tier)

	_, err := st.GetOpenEvent(context.Background(), "zone-a", types.MetricAQI)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCloseResolvesBreachAlerts(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	evalAQI(t, e, 210, "c1")
	evalAQI(t, e, 90, "c2")
	evalAQI(t, e, 90, "c3")
	out := evalAQI(t, e, 90, "c4")
	require.True(t, out.Closed)

	// Once the event closes, its breach alert stops counting as open.
	unresolved := false
	open, err := st.ListAlerts(context.Background(), store.AlertQuery{
		ZoneID: "zone-a", Resolved: &unresolved,
	})
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := st.ListAlerts(context.Background(), store.AlertQuery{ZoneID: "zone-a"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)
}

func TestBounceResetsHysteresisCounter(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	evalAQI(t, e, 210, "c1")
	evalAQI(t, e, 90, "c2")
	evalAQI(t, e, 90, "c3")
	evalAQI(t, e, 220, "c4") // back above: counter resets
	evalAQI(t, e, 90, "c5")
	out := evalAQI(t, e, 90, "c6")
	assert.False(t, out.Closed)
	assert.Equal(t, types.TierEmergency, out.Tier)
}

func TestIdempotentRetrySameCycle(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	// Re-running the same cycle's inputs twice: exactly one open event and
	// one alert.
	evalAQI(t, e, 220, "c1")
	out := evalAQI(t, e, 220, "c1")
	assert.False(t, out.Opened)
	assert.Nil(t, out.Alert)

	open, err := st.ListEvents(context.Background(), store.EventQuery{ZoneID: "zone-a", State: "open"})
	require.NoError(t, err)
	assert.Len(t, open, 1)

	alerts, err := st.ListAlerts(context.Background(), store.AlertQuery{ZoneID: "zone-a"})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestDemandUsesForecastWhenWorse(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)
	fc := 850.0

	out, err := e.Evaluate(context.Background(), Input{
		Zone: zoneA(), Metric: types.MetricEnergy, Value: 400, Forecast: &fc,
		CycleID: "c1", Now: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 850.0, out.Effective)
	assert.Equal(t, types.TierAlert, out.Tier)
}

func TestDemandWithoutForecastUsesRawReading(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	out, err := e.Evaluate(context.Background(), Input{
		Zone: zoneA(), Metric: types.MetricEnergy, Value: 400,
		CycleID: "c1", Now: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 400.0, out.Effective)
	assert.Equal(t, types.TierNormal, out.Tier)
}

func TestEscalationWhileOpenUpgradesSeverity(t *testing.T) {
	st := memory.New()
	e := NewEngine(st, aqiPolicy(), nil)

	evalAQI(t, e, 120, "c1") // WATCH
	out := evalAQI(t, e, 220, "c2")
	assert.Equal(t, types.TierEmergency, out.Tier)
	require.NotNil(t, out.Alert)

	open, err := st.ListEvents(context.Background(), store.EventQuery{ZoneID: "zone-a", State: "open"})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, types.TierEmergency, open[0].Severity)
}

func TestValidateTierOrdering(t *testing.T) {
	pol := aqiPolicy()
	require.NoError(t, Validate(pol))

	pol.Metrics[0].Tiers[2].Trigger = 120 // emergency below alert
	err := Validate(pol)
	require.Error(t, err)
	var cfgErr *types.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidateRejectsUnknownMetric(t *testing.T) {
	pol := aqiPolicy()
	pol.Metrics[0].Metric = "noise"
	assert.Error(t, Validate(pol))
}

func TestValidateRejectsMisorderedTiers(t *testing.T) {
	pol := aqiPolicy()
	pol.Metrics[0].Tiers = []types.TierThreshold{
		{Tier: types.TierAlert, Trigger: 151},
		{Tier: types.TierWatch, Trigger: 101},
	}
	assert.Error(t, Validate(pol))
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(types.TierNormal, types.TierEmergency))
	assert.True(t, CanTransition(types.TierEmergency, types.TierNormal))
	assert.False(t, CanTransition("BOGUS", types.TierNormal))
	assert.NoError(t, Transition(types.TierWatch, types.TierWatch))
}
