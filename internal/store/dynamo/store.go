package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// Query page sizes and retention caps mirroring the Redis backend's trims.
const (
	readingsMax    = 2000
	riskHistoryMax = 500
	cycleIndexMax  = 200
	alertIndexMax  = 1000

	defaultReadingTTL = 30 * 24 * time.Hour
)

// retentionTTL parses the configured reading retention, falling back to the
// default for empty or unparsable values.
func retentionTTL(raw string) time.Duration {
	if raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return defaultReadingTTL
}

// item is the single-table record shape. All payloads travel as JSON in the
// data attribute; PK/SK carry the access patterns.
type item struct {
	PK   string `dynamodbav:"PK"`
	SK   string `dynamodbav:"SK"`
	Data string `dynamodbav:"data"`
	TTL  int64  `dynamodbav:"ttl,omitempty"`
}

func (s *Store) put(ctx context.Context, it item, condition string) error {
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	in := &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}
	if condition != "" {
		in.ConditionExpression = aws.String(condition)
	}
	_, err = s.client.PutItem(ctx, in)
	return err
}

func (s *Store) get(ctx context.Context, pk, sk string, v any) error {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: pk},
			"SK": &ddbtypes.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return err
	}
	if out.Item == nil {
		return store.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return fmt.Errorf("unmarshaling item: %w", err)
	}
	return json.Unmarshal([]byte(it.Data), v)
}

// queryData returns the data payloads under one PK, optionally filtered by an
// SK prefix, newest first.
func (s *Store) queryData(ctx context.Context, pk, skPrefix string, limit int) ([]string, error) {
	in := &dynamodb.QueryInput{
		TableName:        &s.tableName,
		ScanIndexForward: aws.Bool(false),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: pk},
		},
		KeyConditionExpression: aws.String("PK = :pk"),
	}
	if skPrefix != "" {
		in.KeyConditionExpression = aws.String("PK = :pk AND begins_with(SK, :sk)")
		in.ExpressionAttributeValues[":sk"] = &ddbtypes.AttributeValueMemberS{Value: skPrefix}
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := s.client.Query(ctx, in)
	if err != nil {
		return nil, err
	}

	payloads := make([]string, 0, len(out.Items))
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			s.logger.Warn("skipping unreadable item", "pk", pk, "error", err)
			continue
		}
		payloads = append(payloads, it.Data)
	}
	return payloads, nil
}

// AppendReading stores one reading under the zone partition with a TTL.
func (s *Store) AppendReading(ctx context.Context, r types.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling reading: %w", err)
	}
	return s.put(ctx, item{
		PK:   zonePK(r.ZoneID),
		SK:   readingSK(r.Metric, r.Timestamp),
		Data: string(data),
		TTL:  ttlEpoch(s.readingTTL),
	}, "")
}

// LatestReadings returns up to limit readings, newest first.
func (s *Store) LatestReadings(ctx context.Context, zoneID string, metric types.Metric, limit int) ([]types.Reading, error) {
	if limit <= 0 || limit > readingsMax {
		limit = readingsMax
	}
	payloads, err := s.queryData(ctx, zonePK(zoneID), readingPrefix(metric), limit)
	if err != nil {
		return nil, err
	}

	out := make([]types.Reading, 0, len(payloads))
	for _, p := range payloads {
		var r types.Reading
		if err := json.Unmarshal([]byte(p), &r); err != nil {
			s.logger.Warn("skipping corrupt reading", "zone", zoneID, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// PutForecast stores the latest forecast for a zone.
func (s *Store) PutForecast(ctx context.Context, f types.Forecast) error {
	return s.putJSON(ctx, zonePK(f.ZoneID), skForecast, f)
}

// GetForecast retrieves the latest forecast for a zone.
func (s *Store) GetForecast(ctx context.Context, zoneID string) (*types.Forecast, error) {
	var f types.Forecast
	if err := s.get(ctx, zonePK(zoneID), skForecast, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetPolicyState retrieves FSM state for a (zone, metric) pair.
func (s *Store) GetPolicyState(ctx context.Context, zoneID string, metric types.Metric) (*types.PolicyState, error) {
	var st types.PolicyState
	if err := s.get(ctx, zonePK(zoneID), policyStateSK(metric), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// PutPolicyState stores FSM state.
func (s *Store) PutPolicyState(ctx context.Context, st types.PolicyState) error {
	return s.putJSON(ctx, zonePK(st.ZoneID), policyStateSK(st.Metric), st)
}

// OpenEvent opens a constraint event if none is open for the (zone, metric)
// pair. The conditional put on the truth item enforces at-most-one open
// event; a list copy serves the global open-event listing.
func (s *Store) OpenEvent(ctx context.Context, ev types.ConstraintEvent) (*types.ConstraintEvent, bool, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling event: %w", err)
	}

	truth := item{PK: zonePK(ev.ZoneID), SK: openEventSK(ev.Metric), Data: string(data)}
	err = s.put(ctx, truth, "attribute_not_exists(PK)")
	if err == nil {
		copyItem := item{PK: pkOpenEvents, SK: openEventListSK(ev.ZoneID, ev.Metric), Data: string(data)}
		return &ev, true, s.put(ctx, copyItem, "")
	}
	if !isConditionalCheckFailed(err) {
		return nil, false, err
	}

	existing, err := s.GetOpenEvent(ctx, ev.ZoneID, ev.Metric)
	if err != nil {
		return nil, false, err
	}
	if ev.Severity.Above(existing.Severity) {
		existing.Severity = ev.Severity
		upgraded, err := json.Marshal(existing)
		if err != nil {
			return nil, false, fmt.Errorf("marshaling event: %w", err)
		}
		if err := s.put(ctx, item{PK: truth.PK, SK: truth.SK, Data: string(upgraded)}, ""); err != nil {
			return nil, false, err
		}
		if err := s.put(ctx, item{PK: pkOpenEvents, SK: openEventListSK(ev.ZoneID, ev.Metric), Data: string(upgraded)}, ""); err != nil {
			return nil, false, err
		}
	}
	return existing, false, nil
}

// GetOpenEvent retrieves the open event for a (zone, metric) pair.
func (s *Store) GetOpenEvent(ctx context.Context, zoneID string, metric types.Metric) (*types.ConstraintEvent, error) {
	var ev types.ConstraintEvent
	if err := s.get(ctx, zonePK(zoneID), openEventSK(metric), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// CloseEvent stamps the open event's end time and moves it to the closed
// partition.
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
	if err := s.put(ctx, item{PK: pkClosedEvents, SK: closedEventSK(endedAt, ev.EventID), Data: string(data)}, ""); err != nil {
		return err
	}

	for _, key := range [][2]string{
		{zonePK(zoneID), openEventSK(metric)},
		{pkOpenEvents, openEventListSK(zoneID, metric)},
	} {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &s.tableName,
			Key: map[string]ddbtypes.AttributeValue{
				"PK": &ddbtypes.AttributeValueMemberS{Value: key[0]},
				"SK": &ddbtypes.AttributeValueMemberS{Value: key[1]},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListEvents returns events matching the query, open events first.
func (s *Store) ListEvents(ctx context.Context, q store.EventQuery) ([]types.ConstraintEvent, error) {
	var out []types.ConstraintEvent

	appendFrom := func(pk string) error {
		payloads, err := s.queryData(ctx, pk, "", 0)
		if err != nil {
			return err
		}
		for _, p := range payloads {
			var ev types.ConstraintEvent
			if err := json.Unmarshal([]byte(p), &ev); err != nil {
				s.logger.Warn("skipping corrupt event", "error", err)
				continue
			}
			out = append(out, ev)
		}
		return nil
	}

	if q.State == "" || q.State == "open" {
		if err := appendFrom(pkOpenEvents); err != nil {
			return nil, err
		}
	}
	if q.State == "" || q.State == "closed" {
		if err := appendFrom(pkClosedEvents); err != nil {
			return nil, err
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
	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return filtered, nil
}

// PutAlert stores an alert if its ID is new: a conditional put on the truth
// item gives crash-retry idempotence, then a list copy serves listings.
func (s *Store) PutAlert(ctx context.Context, a types.Alert) (bool, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("marshaling alert: %w", err)
	}

	err = s.put(ctx, item{PK: alertPK(a.AlertID), SK: skAlert, Data: string(data)}, "attribute_not_exists(PK)")
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, err
	}

	return true, s.put(ctx, item{
		PK: pkAlerts, SK: alertListSK(a.Timestamp, a.AlertID), Data: string(data),
	}, "")
}

// ResolveAlerts marks every unresolved alert for a (zone, metric, kind) as
// resolved, rewriting both the truth item and its list copy.
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
		if err := s.put(ctx, item{PK: alertPK(a.AlertID), SK: skAlert, Data: string(data)}, ""); err != nil {
			return n, err
		}
		if err := s.put(ctx, item{PK: pkAlerts, SK: alertListSK(a.Timestamp, a.AlertID), Data: string(data)}, ""); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ListAlerts returns alerts matching the query, newest first.
func (s *Store) ListAlerts(ctx context.Context, q store.AlertQuery) ([]types.Alert, error) {
	payloads, err := s.queryData(ctx, pkAlerts, "", alertIndexMax)
	if err != nil {
		return nil, err
	}

	var out []types.Alert
	for _, p := range payloads {
		var a types.Alert
		if err := json.Unmarshal([]byte(p), &a); err != nil {
			s.logger.Warn("skipping corrupt alert", "error", err)
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

// PutRiskScore stores the latest score and a history record.
func (s *Store) PutRiskScore(ctx context.Context, rs types.RiskScore) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshaling risk score: %w", err)
	}
	if err := s.put(ctx, item{PK: zonePK(rs.ZoneID), SK: skRisk, Data: string(data)}, ""); err != nil {
		return err
	}
	return s.put(ctx, item{
		PK: zonePK(rs.ZoneID), SK: riskHistSK(rs.ComputedAt, rs.CycleID), Data: string(data),
	}, "")
}

// GetRiskScore retrieves the latest risk score for a zone.
func (s *Store) GetRiskScore(ctx context.Context, zoneID string) (*types.RiskScore, error) {
	var rs types.RiskScore
	if err := s.get(ctx, zonePK(zoneID), skRisk, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// ListRiskHistory returns a zone's score history, newest first.
func (s *Store) ListRiskHistory(ctx context.Context, zoneID string, limit int) ([]types.RiskScore, error) {
	if limit <= 0 || limit > riskHistoryMax {
		limit = riskHistoryMax
	}
	payloads, err := s.queryData(ctx, zonePK(zoneID), "RISKHIST#", limit)
	if err != nil {
		return nil, err
	}

	out := make([]types.RiskScore, 0, len(payloads))
	for _, p := range payloads {
		var rs types.RiskScore
		if err := json.Unmarshal([]byte(p), &rs); err != nil {
			s.logger.Warn("skipping corrupt risk history", "zone", zoneID, "error", err)
			continue
		}
		out = append(out, rs)
	}
	return out, nil
}

// PutRecommendations stores the latest recommendation set for a zone.
func (s *Store) PutRecommendations(ctx context.Context, set types.RecommendationSet) error {
	return s.putJSON(ctx, zonePK(set.ZoneID), skRecs, set)
}

// GetRecommendations retrieves the latest recommendation set for a zone.
func (s *Store) GetRecommendations(ctx context.Context, zoneID string) (*types.RecommendationSet, error) {
	var set types.RecommendationSet
	if err := s.get(ctx, zonePK(zoneID), skRecs, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// PutCycleSummary appends a cycle summary.
func (s *Store) PutCycleSummary(ctx context.Context, sum types.CycleSummary) error {
	return s.putJSON(ctx, pkCycles, cycleSK(sum.StartedAt, sum.CycleID), sum)
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
	payloads, err := s.queryData(ctx, pkCycles, "", limit)
	if err != nil {
		return nil, err
	}

	out := make([]types.CycleSummary, 0, len(payloads))
	for _, p := range payloads {
		var sum types.CycleSummary
		if err := json.Unmarshal([]byte(p), &sum); err != nil {
			s.logger.Warn("skipping corrupt cycle summary", "error", err)
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// AcquireLock attempts to acquire a distributed lock with the given key and TTL.
// Uses a conditional PutItem that succeeds only if the lock doesn't exist or has expired.
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	ttlVal := fmt.Sprintf("%d", ttlEpoch(ttl))

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":  &ddbtypes.AttributeValueMemberS{Value: lockPK(key)},
			"SK":  &ddbtypes.AttributeValueMemberS{Value: skLock},
			"ttl": &ddbtypes.AttributeValueMemberN{Value: ttlVal},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":now": &ddbtypes.AttributeValueMemberN{Value: now},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReleaseLock releases a distributed lock.
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: lockPK(key)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: skLock},
		},
	})
	return err
}

func (s *Store) putJSON(ctx context.Context, pk, sk string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s/%s: %w", pk, sk, err)
	}
	return s.put(ctx, item{PK: pk, SK: sk, Data: string(data)}, "")
}
