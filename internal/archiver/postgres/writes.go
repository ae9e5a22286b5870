package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// UpsertAlert upserts an alert into the alerts table.
func (s *Store) UpsertAlert(ctx context.Context, a types.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (alert_id, zone_id, kind, severity, metric, summary, cycle_id, timestamp, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (alert_id) DO UPDATE SET
			resolved    = EXCLUDED.resolved,
			archived_at = NOW()
	`, a.AlertID, a.ZoneID, string(a.Kind), string(a.Severity), string(a.Metric),
		a.Summary, a.CycleID, a.Timestamp, a.Resolved)
	return err
}

// UpsertEvent upserts a constraint event.
func (s *Store) UpsertEvent(ctx context.Context, ev types.ConstraintEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO constraint_events (event_id, zone_id, metric, severity, cycle_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO UPDATE SET
			severity    = EXCLUDED.severity,
			ended_at    = EXCLUDED.ended_at,
			archived_at = NOW()
	`, ev.EventID, ev.ZoneID, string(ev.Metric), string(ev.Severity),
		ev.CycleID, ev.StartedAt, ev.EndedAt)
	return err
}

// UpsertRiskScore upserts one zone-cycle risk score.
func (s *Store) UpsertRiskScore(ctx context.Context, rs types.RiskScore) error {
	factorsJSON, err := json.Marshal(rs.Factors)
	if err != nil {
		return fmt.Errorf("marshal risk factors: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO risk_scores (zone_id, cycle_id, score, base_score, tier, factors, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (zone_id, cycle_id) DO UPDATE SET
			score       = EXCLUDED.score,
			base_score  = EXCLUDED.base_score,
			tier        = EXCLUDED.tier,
			factors     = EXCLUDED.factors,
			archived_at = NOW()
	`, rs.ZoneID, rs.CycleID, rs.Score, rs.BaseScore, string(rs.Tier), factorsJSON, rs.ComputedAt)
	return err
}

// UpsertCycleSummary upserts a cycle summary.
func (s *Store) UpsertCycleSummary(ctx context.Context, sum types.CycleSummary) error {
	zonesJSON, err := json.Marshal(sum.Zones)
	if err != nil {
		return fmt.Errorf("marshal zone statuses: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cycle_summaries (cycle_id, started_at, completed_at, zones, ok, degraded, failed, skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cycle_id) DO UPDATE SET
			completed_at = EXCLUDED.completed_at,
			zones        = EXCLUDED.zones,
			ok           = EXCLUDED.ok,
			degraded     = EXCLUDED.degraded,
			failed       = EXCLUDED.failed,
			skipped      = EXCLUDED.skipped,
			archived_at  = NOW()
	`, sum.CycleID, sum.StartedAt, sum.CompletedAt, zonesJSON,
		sum.OK, sum.Degraded, sum.Failed, sum.Skipped)
	return err
}
