package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

const scanBatchSize = 100

// AppendReading appends a reading to the zone-metric window, scored by
// timestamp, and trims old entries.
func (s *Store) AppendReading(ctx context.Context, r types.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling reading: %w", err)
	}

	key := s.readingsKey(r.ZoneID, r.Metric)
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(r.Timestamp.UnixNano()), Member: data})
	pipe.ZRemRangeByRank(ctx, key, 0, -(readingsIndexMax + 1))
	if s.retention > 0 {
		cutoff := time.Now().Add(-s.retention).UnixNano()
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// LatestReadings returns up to limit readings, newest first.
func (s *Store) LatestReadings(ctx context.Context, zoneID string, metric types.Metric, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		limit = readingsIndexMax
	}
	raw, err := s.client.ZRevRange(ctx, s.readingsKey(zoneID, metric), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]types.Reading, 0, len(raw))
	for _, item := range raw {
		var r types.Reading
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			s.logger.Warn("skipping corrupt reading entry", "zone", zoneID, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// PutForecast stores the latest forecast for a zone.
func (s *Store) PutForecast(ctx context.Context, f types.Forecast) error {
	return s.setJSON(ctx, s.forecastKey(f.ZoneID), f)
}

// GetForecast retrieves the latest forecast for a zone.
func (s *Store) GetForecast(ctx context.Context, zoneID string) (*types.Forecast, error) {
	var f types.Forecast
	if err := s.getJSON(ctx, s.forecastKey(zoneID), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetPolicyState retrieves FSM state for a (zone, metric) pair.
func (s *Store) GetPolicyState(ctx context.Context, zoneID string, metric types.Metric) (*types.PolicyState, error) {
	var st types.PolicyState
	if err := s.getJSON(ctx, s.policyStateKey(zoneID, metric), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// PutPolicyState stores FSM state.
func (s *Store) PutPolicyState(ctx context.Context, st types.PolicyState) error {
	return s.setJSON(ctx, s.policyStateKey(st.ZoneID, st.Metric), st)
}

// OpenEvent opens a constraint event if none is open for the (zone, metric)
// pair. SETNX enforces at-most-one open event at write time; when one
// already exists it is returned with created=false, its severity raised if
// the new event's is higher.
func (s *Store) OpenEvent(ctx context.Context, ev types.ConstraintEvent) (*types.ConstraintEvent, bool, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling event: %w", err)
	}

	key := s.openEventKey(ev.ZoneID, ev.Metric)
	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return nil, false, err
	}
	if created {
		return &ev, true, nil
	}

	existing, err := s.GetOpenEvent(ctx, ev.ZoneID, ev.Metric)
	if err != nil {
		return nil, false, err
	}
	if ev.Severity.Above(existing.Severity) {
		existing.Severity = ev.Severity
		if err := s.setJSON(ctx, key, existing); err != nil {
			return nil, false, err
		}
	}
	return existing, false, nil
}

// GetOpenEvent retrieves the open event for a (zone, metric) pair.
func (s *Store) GetOpenEvent(ctx context.Context, zoneID string, metric types.Metric) (*types.ConstraintEvent, error) {
	var ev types.ConstraintEvent
	if err := s.getJSON(ctx, s.openEventKey(zoneID, metric), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// CloseEvent stamps the open event's end time and moves it to the closed
// list.
func (s *Store) CloseEvent(ctx context.Context, zoneID string, metric types.Metric, endedAt time.Time) error {
	ev, err := s.GetOpenEvent(ctx, zoneID, metric)
	if err != nil {
		return err
	}
	ev.EndedAt = &endedAt

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.openEventKey(zoneID, metric))
	pipe.LPush(ctx, s.closedEventsKey(), data)
	pipe.LTrim(ctx, s.closedEventsKey(), 0, closedEventsMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

// ListEvents returns events matching the query, open events first.
func (s *Store) ListEvents(ctx context.Context, q store.EventQuery) ([]types.ConstraintEvent, error) {
	var out []types.ConstraintEvent

	if q.State == "" || q.State == "open" {
		open, err := s.scanOpenEvents(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, open...)
	}

	if q.State == "" || q.State == "closed" {
		raw, err := s.client.LRange(ctx, s.closedEventsKey(), 0, closedEventsMax-1).Result()
		if err != nil {
			return nil, err
		}
		for _, item := range raw {
			var ev types.ConstraintEvent
			if err := json.Unmarshal([]byte(item), &ev); err != nil {
				s.logger.Warn("skipping corrupt event entry", "error", err)
				continue
			}
			out = append(out, ev)
		}
	}

	filtered := out[:0]
	for _, ev := range out {
		if q.ZoneID != "" && ev.ZoneID != q.ZoneID {
			continue
		}
		if q.Severity != "" && ev.Severity != q.Severity {
			continue
		}
		filtered = append(filtered, ev)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.After(filtered[j].StartedAt)
	})
	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return filtered, nil
}

func (s *Store) scanOpenEvents(ctx context.Context) ([]types.ConstraintEvent, error) {
	var cursor uint64
	var out []types.ConstraintEvent

	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.openEventPattern(), scanBatchSize).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var ev types.ConstraintEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				s.logger.Warn("skipping corrupt open event", "key", key, "error", err)
				continue
			}
			out = append(out, ev)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// PutAlert stores an alert if its ID is new. HSETNX gives the idempotence
// the crash-retry path relies on.
func (s *Store) PutAlert(ctx context.Context, a types.Alert) (bool, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("marshaling alert: %w", err)
	}

	created, err := s.client.HSetNX(ctx, s.alertsKey(), a.AlertID, data).Result()
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.alertIndexKey(), goredis.Z{
		Score: float64(a.Timestamp.UnixNano()), Member: a.AlertID,
	})
	pipe.ZRemRangeByRank(ctx, s.alertIndexKey(), 0, int64(-(s.alertIndexLimit() + 1)))
	_, err = pipe.Exec(ctx)
	return true, err
}

// ResolveAlerts marks every unresolved alert for a (zone, metric, kind) as
// resolved, rewriting the hash entries in place.
func (s *Store) ResolveAlerts(ctx context.Context, zoneID string, metric types.Metric, kind types.AlertKind) (int, error) {
	unresolved := false
	open, err := s.ListAlerts(ctx, store.AlertQuery{ZoneID: zoneID, Kind: kind, Resolved: &unresolved})
	if err != nil {
		return 0, err
	}

	var n int
	for _, a := range open {
		if metric != "" && a.Metric != metric {
			continue
		}
		a.Resolved = true
		data, err := json.Marshal(a)
		if err != nil {
			return n, fmt.Errorf("marshaling alert: %w", err)
		}
		if err := s.client.HSet(ctx, s.alertsKey(), a.AlertID, data).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ListAlerts returns alerts matching the query, newest first.
func (s *Store) ListAlerts(ctx context.Context, q store.AlertQuery) ([]types.Alert, error) {
	ids, err := s.client.ZRevRange(ctx, s.alertIndexKey(), 0, int64(s.alertIndexLimit()-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := s.client.HMGet(ctx, s.alertsKey(), ids...).Result()
	if err != nil {
		return nil, err
	}

	var out []types.Alert
	for _, item := range raw {
		str, ok := item.(string)
		if !ok {
			continue
		}
		var a types.Alert
		if err := json.Unmarshal([]byte(str), &a); err != nil {
			s.logger.Warn("skipping corrupt alert entry", "error", err)
			continue
		}
		if q.ZoneID != "" && a.ZoneID != q.ZoneID {
			continue
		}
		if q.Severity != "" && a.Severity != q.Severity {
			continue
		}
		if q.Kind != "" && a.Kind != q.Kind {
			continue
		}
		if q.Resolved != nil && a.Resolved != *q.Resolved {
			continue
		}
		out = append(out, a)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// PutRiskScore stores the latest score and appends it to the zone's history.
func (s *Store) PutRiskScore(ctx context.Context, rs types.RiskScore) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshaling risk score: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.riskKey(rs.ZoneID), data, 0)
	pipe.LPush(ctx, s.riskHistoryKey(rs.ZoneID), data)
	pipe.LTrim(ctx, s.riskHistoryKey(rs.ZoneID), 0, int64(s.riskHistoryLimit()-1))
	_, err = pipe.Exec(ctx)
	return err
}

// GetRiskScore retrieves the latest risk score for a zone.
func (s *Store) GetRiskScore(ctx context.Context, zoneID string) (*types.RiskScore, error) {
	var rs types.RiskScore
	if err := s.getJSON(ctx, s.riskKey(zoneID), &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// ListRiskHistory returns a zone's score history, newest first.
func (s *Store) ListRiskHistory(ctx context.Context, zoneID string, limit int) ([]types.RiskScore, error) {
	if limit <= 0 || limit > s.riskHistoryLimit() {
		limit = s.riskHistoryLimit()
	}
	raw, err := s.client.LRange(ctx, s.riskHistoryKey(zoneID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]types.RiskScore, 0, len(raw))
	for _, item := range raw {
		var rs types.RiskScore
		if err := json.Unmarshal([]byte(item), &rs); err != nil {
			s.logger.Warn("skipping corrupt risk history entry", "zone", zoneID, "error", err)
			continue
		}
		out = append(out, rs)
	}
	return out, nil
}

// PutRecommendations stores the latest recommendation set for a zone.
func (s *Store) PutRecommendations(ctx context.Context, set types.RecommendationSet) error {
	return s.setJSON(ctx, s.recommendationsKey(set.ZoneID), set)
}

// GetRecommendations retrieves the latest recommendation set for a zone.
func (s *Store) GetRecommendations(ctx context.Context, zoneID string) (*types.RecommendationSet, error) {
	var set types.RecommendationSet
	if err := s.getJSON(ctx, s.recommendationsKey(zoneID), &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// PutCycleSummary appends a cycle summary to the cycle index.
func (s *Store) PutCycleSummary(ctx context.Context, sum types.CycleSummary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshaling cycle summary: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.cycleIndexKey(), data)
	pipe.LTrim(ctx, s.cycleIndexKey(), 0, cycleIndexMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

// LatestCycleSummary returns the most recent cycle summary.
func (s *Store) LatestCycleSummary(ctx context.Context) (*types.CycleSummary, error) {
	summaries, err := s.ListCycleSummaries(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, store.ErrNotFound
	}
	return &summaries[0], nil
}

// ListCycleSummaries returns recent cycle summaries, newest first.
func (s *Store) ListCycleSummaries(ctx context.Context, limit int) ([]types.CycleSummary, error) {
	if limit <= 0 || limit > cycleIndexMax {
		limit = cycleIndexMax
	}
	raw, err := s.client.LRange(ctx, s.cycleIndexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]types.CycleSummary, 0, len(raw))
	for _, item := range raw {
		var sum types.CycleSummary
		if err := json.Unmarshal([]byte(item), &sum); err != nil {
			s.logger.Warn("skipping corrupt cycle summary", "error", err)
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// AcquireLock attempts a SETNX lock with TTL.
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.lockKey(key), "1", ttl).Result()
}

// ReleaseLock releases a held lock.
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.lockKey(key)).Err()
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
