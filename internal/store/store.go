// Package store defines the storage backend interface for GridPulse.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// ErrNotFound is returned by Get* methods when no record exists.
var ErrNotFound = errors.New("not found")

// EventQuery filters constraint event listings. Zero values mean "any".
type EventQuery struct {
	ZoneID   string
	Severity types.PolicyTier
	State    string // "open", "closed", or "" for both
	Limit    int
}

// AlertQuery filters alert listings. Zero values mean "any".
type AlertQuery struct {
	ZoneID   string
	Severity types.PolicyTier
	Kind     types.AlertKind
	Resolved *bool
	Limit    int
}

// Store is the storage backend interface. The memory backend serves tests
// and single-node runs; Redis is the primary operational store; DynamoDB
// serves serverless deployments.
//
// Write discipline: OpenEvent and PutAlert are upserts keyed so that
// re-running a cycle after a crash never duplicates open events or alerts.
type Store interface {
	// Readings are append-only, owned by the ingestion collaborator.
	AppendReading(ctx context.Context, r types.Reading) error
	LatestReadings(ctx context.Context, zoneID string, metric types.Metric, limit int) ([]types.Reading, error) // newest first

	// Forecasts: one per zone per cycle, latest wins.
	PutForecast(ctx context.Context, f types.Forecast) error
	GetForecast(ctx context.Context, zoneID string) (*types.Forecast, error)

	// Policy FSM state per (zone, metric).
	GetPolicyState(ctx context.Context, zoneID string, metric types.Metric) (*types.PolicyState, error)
	PutPolicyState(ctx context.Context, st types.PolicyState) error

	// Constraint events. OpenEvent enforces at-most-one open event per
	// (zone, metric) at write time: if one is already open it is returned
	// with created=false (severity updated if the new one is higher).
	OpenEvent(ctx context.Context, ev types.ConstraintEvent) (*types.ConstraintEvent, bool, error)
	GetOpenEvent(ctx context.Context, zoneID string, metric types.Metric) (*types.ConstraintEvent, error)
	CloseEvent(ctx context.Context, zoneID string, metric types.Metric, endedAt time.Time) error
	ListEvents(ctx context.Context, q EventQuery) ([]types.ConstraintEvent, error)

	// Alerts. PutAlert is idempotent on AlertID; created=false means the
	// alert already existed (retry of the same cycle). ResolveAlerts marks
	// every unresolved alert for a (zone, metric, kind) as resolved and
	// returns how many it touched; empty metric matches any.
	PutAlert(ctx context.Context, a types.Alert) (bool, error)
	ResolveAlerts(ctx context.Context, zoneID string, metric types.Metric, kind types.AlertKind) (int, error)
	ListAlerts(ctx context.Context, q AlertQuery) ([]types.Alert, error)

	// Risk scores: latest plus bounded history per zone.
	PutRiskScore(ctx context.Context, rs types.RiskScore) error
	GetRiskScore(ctx context.Context, zoneID string) (*types.RiskScore, error)
	ListRiskHistory(ctx context.Context, zoneID string, limit int) ([]types.RiskScore, error)

	// Recommendations: latest set per zone.
	PutRecommendations(ctx context.Context, set types.RecommendationSet) error
	GetRecommendations(ctx context.Context, zoneID string) (*types.RecommendationSet, error)

	// Cycle summaries.
	PutCycleSummary(ctx context.Context, s types.CycleSummary) error
	LatestCycleSummary(ctx context.Context) (*types.CycleSummary, error)
	ListCycleSummaries(ctx context.Context, limit int) ([]types.CycleSummary, error)

	// Locking for scheduler coordination across replicas.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
