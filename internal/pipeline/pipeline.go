// Package pipeline orchestrates one processing cycle: per-zone assessment
// fan-out, the graph-wide risk stage, recommendation publication, and the
// cycle summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gridpulse/gridpulse/internal/anomaly"
	"github.com/gridpulse/gridpulse/internal/forecast"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/policy"
	"github.com/gridpulse/gridpulse/internal/recommend"
	"github.com/gridpulse/gridpulse/internal/risk"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

const (
	defaultMaxParallel = 8
	defaultWindowSize  = 168 // one week of hourly readings
)

// Config holds cycle orchestration parameters.
type Config struct {
	MaxParallel int
	CycleBudget time.Duration // 0 = no budget
	WindowSize  int           // readings fetched per (zone, metric)
}

func (c *Config) withDefaults() {
	if c.MaxParallel <= 0 {
		c.MaxParallel = defaultMaxParallel
	}
	if c.WindowSize <= 0 {
		c.WindowSize = defaultWindowSize
	}
}

// Pipeline wires the per-cycle stages together over one store and one zone
// graph. Safe for a single runner; concurrent cycles are prevented by the
// scheduler's lock, not here.
type Pipeline struct {
	cfg      Config
	store    store.Store
	graph    *topology.Graph
	forecast *forecast.Engine
	detector *anomaly.Detector
	policy   *policy.Engine
	risk     *risk.Engine
	alertFn  func(types.Alert)
	logger   *slog.Logger
}

// New creates a Pipeline. alertFn receives every newly created alert for
// dispatch and may be nil.
func New(cfg Config, st store.Store, graph *topology.Graph, fc *forecast.Engine,
	det *anomaly.Detector, pol *policy.Engine, rk *risk.Engine,
	alertFn func(types.Alert), logger *slog.Logger) *Pipeline {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg: cfg, store: st, graph: graph,
		forecast: fc, detector: det, policy: pol, risk: rk,
		alertFn: alertFn, logger: logger,
	}
}

// zoneResult is what one zone's per-zone stage hands to the risk stage.
type zoneResult struct {
	zone       types.Zone
	status     types.ZoneStatus
	detail     string
	airTier    types.PolicyTier
	demandTier types.PolicyTier
	demand     float64 // effective demand used for policy evaluation
	anomalies  int
	openAlerts int
}

// RunCycle executes one full processing cycle and returns its summary. Zone
// failures are isolated: a failed zone is reported in the summary and simply
// has no fresh score this cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (*types.CycleSummary, error) {
	cycleID := ulid.Make().String()
	started := time.Now()
	metrics.CyclesTotal.Inc()

	if p.cfg.CycleBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.CycleBudget)
		defer cancel()
	}

	p.logger.Info("cycle started", "cycle", cycleID, "zones", p.graph.Len())

	zones := p.graph.Zones()
	results := make([]*zoneResult, len(zones))

	// Zone errors are captured per result, never propagated, so a plain
	// group (no shared cancellation) is the right tool.
	var g errgroup.Group
	g.SetLimit(p.cfg.MaxParallel)

	for i, z := range zones {
		g.Go(func() error {
			// Out of budget: the zone is skipped, not failed.
			if ctx.Err() != nil {
				results[i] = &zoneResult{
					zone: z, status: types.ZoneSkipped, detail: "cycle budget exhausted",
				}
				metrics.ZonesSkipped.Inc()
				return nil
			}
			results[i] = p.assessZone(ctx, z, cycleID, started)
			return nil
		})
	}
	_ = g.Wait()

	// Barrier: every zone is done (or skipped) before scoring starts, so
	// propagation reads one consistent set of base scores.
	signals := make(map[string]risk.Signals, len(results))
	byZone := make(map[string]*zoneResult, len(results))
	for _, r := range results {
		byZone[r.zone.ID] = r
		if r.status == types.ZoneFailed || r.status == types.ZoneSkipped {
			continue
		}
		signals[r.zone.ID] = risk.Signals{
			Zone:        r.zone,
			AirTier:     r.airTier,
			DemandRatio: p.demandRatio(r.zone, r.demand),
			OpenAlerts:  r.openAlerts,
		}
	}

	scores, err := p.risk.Compute(p.graph, signals, cycleID, time.Now())
	if err != nil {
		p.logger.Error("risk stage degraded", "cycle", cycleID, "error", err)
	}
	for _, rs := range scores {
		if err := p.store.PutRiskScore(ctx, rs); err != nil {
			p.logger.Error("storing risk score", "zone", rs.ZoneID, "error", err)
			markFailed(byZone[rs.ZoneID], "storing risk score: "+err.Error())
		}
	}

	now := time.Now()
	for id, rs := range scores {
		r := byZone[id]
		if r == nil || r.status == types.ZoneFailed {
			continue
		}
		set := recommend.Generate(recommend.Input{
			Zone:       r.zone,
			RiskTier:   rs.Tier,
			DemandTier: r.demandTier,
			AirTier:    r.airTier,
			Anomalies:  r.anomalies,
		}, cycleID, now)
		if err := p.store.PutRecommendations(ctx, set); err != nil {
			p.logger.Error("storing recommendations", "zone", id, "error", err)
			markFailed(r, "storing recommendations: "+err.Error())
		}
	}

	summary := p.summarize(cycleID, started, results)
	if err := p.store.PutCycleSummary(ctx, *summary); err != nil {
		return summary, fmt.Errorf("storing cycle summary: %w", err)
	}

	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	p.logger.Info("cycle completed", "cycle", cycleID,
		"ok", summary.OK, "degraded", summary.Degraded,
		"failed", summary.Failed, "skipped", summary.Skipped,
		"duration", time.Since(started))
	return summary, nil
}

// assessZone runs the forecast, anomaly, and policy stages for one zone. A
// panic in any stage fails the zone, never the cycle.
func (p *Pipeline) assessZone(ctx context.Context, z types.Zone, cycleID string, now time.Time) (res *zoneResult) {
	res = &zoneResult{zone: z, status: types.ZoneOK}
	defer func() {
		if r := recover(); r != nil {
			res.status = types.ZoneFailed
			res.detail = fmt.Sprintf("panic: %v", r)
			metrics.ZoneFailures.Inc()
			p.logger.Error("zone stage panicked", "zone", z.ID, "panic", r)
		}
	}()

	degrade := func(detail string) {
		if res.status == types.ZoneOK {
			res.status = types.ZoneDegraded
			res.detail = detail
		}
	}
	fail := func(detail string) {
		res.status = types.ZoneFailed
		res.detail = detail
		metrics.ZoneFailures.Inc()
	}

	demandWindow, err := p.store.LatestReadings(ctx, z.ID, types.MetricEnergy, p.cfg.WindowSize)
	if err != nil {
		fail("loading demand readings: " + err.Error())
		return res
	}

	// Forecast. Unavailability is degradation: the zone still gets policy
	// evaluation on raw readings.
	var predicted *float64
	fc, err := p.forecast.Forecast(z.ID, demandWindow, cycleID, now)
	switch {
	case errors.Is(err, types.ErrForecastUnavailable):
		degrade("forecast unavailable: insufficient samples")
	case err != nil:
		degrade("forecast failed: " + err.Error())
	default:
		if err := p.store.PutForecast(ctx, *fc); err != nil {
			fail("storing forecast: " + err.Error())
			return res
		}
		predicted = &fc.Predicted
		metrics.ForecastModels.WithLabelValues(fc.Model).Inc()
	}

	// Anomaly scan on the same window. Findings become alerts here; the
	// detector itself never writes.
	findings := p.detector.Detect(z.ID, demandWindow)
	for _, f := range findings {
		metrics.AnomaliesFlagged.Inc()
		alert := types.Alert{
			AlertID:  fmt.Sprintf("%s:%s:%s:%s", cycleID, z.ID, types.AlertAnomaly, types.MetricEnergy),
			ZoneID:   z.ID,
			Kind:     types.AlertAnomaly,
			Severity: types.TierWatch,
			Metric:   types.MetricEnergy,
			Summary: fmt.Sprintf("consumption %.1f deviates from baseline %.1f (%s)",
				f.Observed, f.Baseline, f.Mode),
			CycleID:   cycleID,
			Timestamp: now,
		}
		created, err := p.store.PutAlert(ctx, alert)
		if err != nil {
			fail("storing anomaly alert: " + err.Error())
			return res
		}
		if created {
			metrics.AlertsCreated.WithLabelValues(string(types.AlertAnomaly)).Inc()
			p.dispatch(alert)
		}
	}
	if len(findings) == 0 {
		// Consumption is back to baseline: earlier anomaly alerts are stale.
		if _, err := p.store.ResolveAlerts(ctx, z.ID, types.MetricEnergy, types.AlertAnomaly); err != nil {
			p.logger.Error("resolving anomaly alerts", "zone", z.ID, "error", err)
		}
	}
	res.anomalies = len(findings)

	// Policy evaluation per metric the active policy covers.
	if out, ok := p.evaluatePolicy(ctx, policy.Input{
		Zone: z, Metric: types.MetricEnergy,
		Value:    latestValue(demandWindow),
		Forecast: predicted,
		CycleID:  cycleID, Now: now,
	}, res); ok {
		res.demandTier = out.Tier
		res.demand = out.Effective
	}

	aqiWindow, err := p.store.LatestReadings(ctx, z.ID, types.MetricAQI, 1)
	if err != nil {
		fail("loading air quality readings: " + err.Error())
		return res
	}
	if len(aqiWindow) > 0 {
		if out, ok := p.evaluatePolicy(ctx, policy.Input{
			Zone: z, Metric: types.MetricAQI,
			Value:   aqiWindow[0].Value,
			CycleID: cycleID, Now: now,
		}, res); ok {
			res.airTier = out.Tier
		}
	}

	open, err := p.store.ListAlerts(ctx, store.AlertQuery{ZoneID: z.ID, Resolved: boolPtr(false)})
	if err != nil {
		fail("counting open alerts: " + err.Error())
		return res
	}
	res.openAlerts = len(open)

	return res
}

// evaluatePolicy runs one (zone, metric) evaluation, dispatching any new
// alert. A metric the policy does not cover is silently skipped.
func (p *Pipeline) evaluatePolicy(ctx context.Context, in policy.Input, res *zoneResult) (*policy.Outcome, bool) {
	out, err := p.policy.Evaluate(ctx, in)
	if err != nil {
		res.status = types.ZoneFailed
		res.detail = fmt.Sprintf("policy evaluation (%s): %v", in.Metric, err)
		metrics.ZoneFailures.Inc()
		return nil, false
	}
	if out.Alert != nil {
		metrics.AlertsCreated.WithLabelValues(string(types.AlertThresholdBreach)).Inc()
		p.dispatch(*out.Alert)
	}
	return out, true
}

// demandRatio normalizes effective demand against the zone's WATCH trigger.
func (p *Pipeline) demandRatio(z types.Zone, demand float64) float64 {
	if demand <= 0 {
		return 0
	}
	out, err := p.policy.WatchTrigger(types.MetricEnergy)
	if err != nil || out <= 0 {
		return 0
	}
	return demand / out
}

func (p *Pipeline) dispatch(a types.Alert) {
	if p.alertFn != nil {
		p.alertFn(a)
	}
}

func (p *Pipeline) summarize(cycleID string, started time.Time, results []*zoneResult) *types.CycleSummary {
	statuses := make([]types.ZoneCycleStatus, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, types.ZoneCycleStatus{
			ZoneID: r.zone.ID, Status: r.status, Detail: r.detail,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ZoneID < statuses[j].ZoneID })

	s := &types.CycleSummary{
		CycleID:     cycleID,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Zones:       statuses,
	}
	s.Count()
	return s
}

func markFailed(r *zoneResult, detail string) {
	if r == nil {
		return
	}
	r.status = types.ZoneFailed
	r.detail = detail
}

func latestValue(newestFirst []types.Reading) float64 {
	if len(newestFirst) == 0 {
		return 0
	}
	return newestFirst[0].Value
}

func boolPtr(b bool) *bool { return &b }
