package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

const defaultCloseAfterCycles = 3

// Input is one (zone, metric) evaluation for a cycle. For demand, Forecast
// carries the published next-horizon prediction when one exists; the engine
// evaluates against the worse of the latest reading and the forecast.
type Input struct {
	Zone     types.Zone
	Metric   types.Metric
	Value    float64
	Forecast *float64
	CycleID  string
	Now      time.Time
}

// Outcome reports what one evaluation did.
type Outcome struct {
	ZoneID    string
	Metric    types.Metric
	Effective float64
	PrevTier  types.PolicyTier
	Tier      types.PolicyTier
	Opened    bool
	Closed    bool
	Alert     *types.Alert // non-nil when a new alert was created this cycle
}

// Engine is the policy threshold engine. Zones are evaluated independently;
// all cross-zone effects belong to the risk propagation engine.
type Engine struct {
	store      store.Store
	policy     types.Policy
	closeAfter int
	logger     *slog.Logger
}

// NewEngine creates a threshold engine for the active policy.
func NewEngine(st store.Store, pol types.Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	closeAfter := pol.CloseAfterCycles
	if closeAfter <= 0 {
		closeAfter = defaultCloseAfterCycles
	}
	return &Engine{store: st, policy: pol, closeAfter: closeAfter, logger: logger}
}

// Evaluate runs one cycle of the (zone, metric) state machine: escalation
// opens (or upgrades) the constraint event and creates an alert;
// de-escalation only closes the event after closeAfter consecutive
// below-tier cycles.
func (e *Engine) Evaluate(ctx context.Context, in Input) (*Outcome, error) {
	ladder := e.policy.Metric(in.Metric)
	if ladder == nil {
		return nil, fmt.Errorf("policy %q does not cover metric %s", e.policy.Name, in.Metric)
	}

	effective := in.Value
	if in.Metric == types.MetricEnergy && in.Forecast != nil && *in.Forecast > effective {
		effective = *in.Forecast
	}
	target := ladder.TierFor(effective)

	st, err := e.store.GetPolicyState(ctx, in.Zone.ID, in.Metric)
	if err != nil {
		if err != store.ErrNotFound {
			return nil, fmt.Errorf("loading policy state: %w", err)
		}
		st = &types.PolicyState{ZoneID: in.Zone.ID, Metric: in.Metric, Tier: types.TierNormal}
	}

	out := &Outcome{
		ZoneID:    in.Zone.ID,
		Metric:    in.Metric,
		Effective: effective,
		PrevTier:  st.Tier,
		Tier:      st.Tier,
	}

	switch {
	case target.Above(st.Tier):
		if err := Transition(st.Tier, target); err != nil {
			return nil, err
		}
		if err := e.escalate(ctx, in, target, effective, out); err != nil {
			return nil, err
		}
		st.Tier = target
		st.BelowCount = 0
		out.Tier = target

	case target == st.Tier:
		// Holding tier: reset the hysteresis counter.
		st.BelowCount = 0

	default:
		st.BelowCount++
		if st.BelowCount >= e.closeAfter {
			if err := Transition(st.Tier, target); err != nil {
				return nil, err
			}
			if IsBreached(st.Tier) {
				if err := e.closeEvent(ctx, in); err != nil {
					return nil, err
				}
				out.Closed = true
			}
			st.Tier = target
			st.BelowCount = 0
			out.Tier = target
		}
	}

	st.UpdatedAt = in.Now
	if err := e.store.PutPolicyState(ctx, *st); err != nil {
		return nil, fmt.Errorf("storing policy state: %w", err)
	}
	return out, nil
}

func (e *Engine) escalate(ctx context.Context, in Input, target types.PolicyTier, effective float64, out *Outcome) error {
	trigger, _ := e.policy.Metric(in.Metric).Trigger(target)

	// Deterministic IDs make crash-retry of the same cycle a no-op.
	ev := types.ConstraintEvent{
		EventID:   fmt.Sprintf("ev:%s:%s:%s", in.CycleID, in.Zone.ID, in.Metric),
		ZoneID:    in.Zone.ID,
		Metric:    in.Metric,
		Severity:  target,
		CycleID:   in.CycleID,
		StartedAt: in.Now,
	}
	_, created, err := e.store.OpenEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("opening constraint event: %w", err)
	}
	out.Opened = created

	alert := types.Alert{
		AlertID:  fmt.Sprintf("%s:%s:%s:%s", in.CycleID, in.Zone.ID, types.AlertThresholdBreach, in.Metric),
		ZoneID:   in.Zone.ID,
		Kind:     types.AlertThresholdBreach,
		Severity: target,
		Metric:   in.Metric,
		Summary: fmt.Sprintf("%s %.1f breached %s threshold %.1f in zone %s",
			in.Metric, effective, target, trigger, in.Zone.ID),
		CycleID:   in.CycleID,
		Timestamp: in.Now,
	}
	alertCreated, err := e.store.PutAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("storing alert: %w", err)
	}
	if alertCreated {
		out.Alert = &alert
	}

	e.logger.Warn("policy tier escalated",
		"zone", in.Zone.ID, "metric", in.Metric,
		"from", out.PrevTier, "to", target, "value", effective)
	return nil
}

func (e *Engine) closeEvent(ctx context.Context, in Input) error {
	if err := e.store.CloseEvent(ctx, in.Zone.ID, in.Metric, in.Now); err != nil && err != store.ErrNotFound {
		return fmt.Errorf("closing constraint event: %w", err)
	}
	// The breach is over: its alerts no longer count as open.
	resolved, err := e.store.ResolveAlerts(ctx, in.Zone.ID, in.Metric, types.AlertThresholdBreach)
	if err != nil {
		return fmt.Errorf("resolving breach alerts: %w", err)
	}
	e.logger.Info("constraint event closed",
		"zone", in.Zone.ID, "metric", in.Metric,
		"after_cycles", e.closeAfter, "alerts_resolved", resolved)
	return nil
}

// WatchTrigger returns the WATCH-tier trigger for a metric in the active
// policy, used to normalize demand for risk scoring.
func (e *Engine) WatchTrigger(m types.Metric) (float64, error) {
	ladder := e.policy.Metric(m)
	if ladder == nil {
		return 0, fmt.Errorf("policy %q does not cover metric %s", e.policy.Name, m)
	}
	trigger, ok := ladder.Trigger(types.TierWatch)
	if !ok {
		return 0, fmt.Errorf("metric %s has no %s tier", m, types.TierWatch)
	}
	return trigger, nil
}

// Validate checks a policy document. Tier ladders must be totally ordered:
// each more severe tier's trigger strictly above the previous. Fatal at load
// time.
func Validate(pol types.Policy) error {
	if len(pol.Metrics) == 0 {
		return types.NewConfigError("policy.metrics", "no metric thresholds defined")
	}
	if pol.CloseAfterCycles < 0 {
		return types.NewConfigError("policy.closeAfterCycles", "must be >= 0")
	}
	for _, mp := range pol.Metrics {
		if !types.ValidMetric(mp.Metric) {
			return types.NewConfigError("policy.metrics", "unknown metric %q", mp.Metric)
		}
		if len(mp.Tiers) == 0 {
			return types.NewConfigError("policy.metrics", "metric %s has no tiers", mp.Metric)
		}
		prevRank := 0
		prevTrigger := 0.0
		for i, t := range mp.Tiers {
			if t.Tier.Rank() <= 0 {
				return types.NewConfigError("policy.metrics",
					"metric %s: tier %q is not a threshold tier", mp.Metric, t.Tier)
			}
			if t.Tier.Rank() <= prevRank {
				return types.NewConfigError("policy.metrics",
					"metric %s: tiers out of severity order at %q", mp.Metric, t.Tier)
			}
			if i > 0 && t.Trigger <= prevTrigger {
				return types.NewConfigError("policy.metrics",
					"metric %s: %s trigger %.2f must exceed previous tier's %.2f",
					mp.Metric, t.Tier, t.Trigger, prevTrigger)
			}
			prevRank = t.Tier.Rank()
			prevTrigger = t.Trigger
		}
	}
	return nil
}
