// Package types defines the public domain types for the GridPulse zone risk pipeline.
package types

import "time"

// Zone is a geographic/administrative unit of the grid. Zones are created at
// configuration time and are immutable during normal operation.
type Zone struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name,omitempty" json:"name,omitempty"`
	Population    int      `yaml:"population,omitempty" json:"population,omitempty"`
	GridPriority  int      `yaml:"gridPriority" json:"gridPriority"` // ordinal, 1 = most critical
	CriticalSites []string `yaml:"criticalSites,omitempty" json:"criticalSites,omitempty"`
}

// IsCritical reports whether the zone hosts any critical-infrastructure site
// (hospital, water, telecom). Critical zones are shielded from load-shedding
// recommendations.
func (z Zone) IsCritical() bool { return len(z.CriticalSites) > 0 }

// AdjacencyEdge is a directed neighbor relation between two zones. The
// topology must contain the reverse edge for every edge (validated at load).
type AdjacencyEdge struct {
	From   string  `yaml:"from" json:"from"`
	To     string  `yaml:"to" json:"to"`
	Weight float64 `yaml:"weight,omitempty" json:"weight,omitempty"` // defaults to 1.0
}

// Reading is one normalized observation for a zone. Readings are append-only
// and owned by the ingestion collaborator.
type Reading struct {
	ZoneID    string    `json:"zoneId"`
	Timestamp time.Time `json:"timestamp"`
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
}

// TierThreshold is one rung of a metric's threshold ladder.
type TierThreshold struct {
	Tier    PolicyTier `yaml:"tier" json:"tier"`
	Trigger float64    `yaml:"trigger" json:"trigger"`
	Actions []string   `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// MetricPolicy holds the ordered threshold tiers for one metric.
type MetricPolicy struct {
	Metric Metric          `yaml:"metric" json:"metric"`
	Tiers  []TierThreshold `yaml:"tiers" json:"tiers"`
}

// TierFor returns the highest tier whose trigger the value meets, or NORMAL.
func (mp MetricPolicy) TierFor(value float64) PolicyTier {
	tier := TierNormal
	for _, t := range mp.Tiers {
		if value >= t.Trigger && t.Tier.Above(tier) {
			tier = t.Tier
		}
	}
	return tier
}

// Trigger returns the threshold value for a tier, or false if the metric's
// ladder does not define that tier.
func (mp MetricPolicy) Trigger(tier PolicyTier) (float64, bool) {
	for _, t := range mp.Tiers {
		if t.Tier == tier {
			return t.Trigger, true
		}
	}
	return 0, false
}

// Policy is the single active policy document. Read-only for the pipeline.
type Policy struct {
	Name             string         `yaml:"name" json:"name"`
	CloseAfterCycles int            `yaml:"closeAfterCycles,omitempty" json:"closeAfterCycles,omitempty"` // hysteresis window, default 3
	Metrics          []MetricPolicy `yaml:"metrics" json:"metrics"`
}

// Metric returns the threshold ladder for a metric, or nil if the policy
// does not cover it.
func (p Policy) Metric(m Metric) *MetricPolicy {
	for i := range p.Metrics {
		if p.Metrics[i].Metric == m {
			return &p.Metrics[i]
		}
	}
	return nil
}

// ConstraintEvent records a policy tier breach over time. At most one event
// per (zone, metric) may be open, enforced at write time by the store.
type ConstraintEvent struct {
	EventID   string     `json:"eventId"`
	ZoneID    string     `json:"zoneId"`
	Metric    Metric     `json:"metric"`
	Severity  PolicyTier `json:"severity"`
	CycleID   string     `json:"cycleId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Open reports whether the event is still active.
func (e ConstraintEvent) Open() bool { return e.EndedAt == nil }

// Alert is a single notification produced by the policy engine or the
// anomaly detector. AlertID is deterministic per (cycle, zone, kind, metric)
// so retried cycles never duplicate alerts.
type Alert struct {
	AlertID   string     `json:"alertId"`
	ZoneID    string     `json:"zoneId"`
	Kind      AlertKind  `json:"kind"`
	Severity  PolicyTier `json:"severity"`
	Metric    Metric     `json:"metric,omitempty"`
	Summary   string     `json:"summary"`
	CycleID   string     `json:"cycleId"`
	Timestamp time.Time  `json:"timestamp"`
	Resolved  bool       `json:"resolved"`
}

// Forecast is the published next-horizon demand prediction for a zone.
type Forecast struct {
	ZoneID         string    `json:"zoneId"`
	Metric         Metric    `json:"metric"`
	HorizonMinutes int       `json:"horizonMinutes"`
	Predicted      float64   `json:"predicted"`
	Model          string    `json:"model"`
	RMSE           float64   `json:"rmse"`
	R2             float64   `json:"r2"`
	SampleCount    int       `json:"sampleCount"`
	CycleID        string    `json:"cycleId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AnomalyFinding is one flagged consumption record. Findings are returned to
// the caller; persisting the resulting alert is the caller's decision.
type AnomalyFinding struct {
	ZoneID    string      `json:"zoneId"`
	Observed  float64     `json:"observed"`
	Baseline  float64     `json:"baseline"`
	Ratio     float64     `json:"ratio,omitempty"`
	Score     float64     `json:"score,omitempty"` // reconstruction error
	Mode      AnomalyMode `json:"mode"`
	Timestamp time.Time   `json:"timestamp"`
}

// RiskScore is the per-cycle risk assessment for a zone, with the factor
// breakdown kept for explainability. Previous scores are history, never
// mutated.
type RiskScore struct {
	ZoneID     string             `json:"zoneId"`
	Score      float64            `json:"score"` // 0-100, after propagation
	BaseScore  float64            `json:"baseScore"`
	Tier       RiskTier           `json:"tier"`
	Factors    map[string]float64 `json:"factors,omitempty"`
	CycleID    string             `json:"cycleId"`
	ComputedAt time.Time          `json:"computedAt"`
}

// Recommendation is one ranked action drawn from the fixed catalog.
type Recommendation struct {
	Action   string      `json:"action"`
	Class    ActionClass `json:"class"`
	Priority int         `json:"priority"` // lower = more urgent
	Reason   string      `json:"reason,omitempty"`
}

// RecommendationSet is the ordered action list published for a zone per cycle.
type RecommendationSet struct {
	ZoneID     string           `json:"zoneId"`
	CycleID    string           `json:"cycleId"`
	RiskTier   RiskTier         `json:"riskTier"`
	PolicyTier PolicyTier       `json:"policyTier"`
	Actions    []Recommendation `json:"actions"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// PolicyState is the persisted FSM state for one (zone, metric) pair,
// including the consecutive below-threshold cycle counter used for
// hysteresis.
type PolicyState struct {
	ZoneID     string     `json:"zoneId"`
	Metric     Metric     `json:"metric"`
	Tier       PolicyTier `json:"tier"`
	BelowCount int        `json:"belowCount"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// ZoneCycleStatus records how one zone fared in a cycle.
type ZoneCycleStatus struct {
	ZoneID string     `json:"zoneId"`
	Status ZoneStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// CycleSummary is the operator-visible report for one processing cycle.
// Every configured zone appears exactly once.
type CycleSummary struct {
	CycleID     string            `json:"cycleId"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
	Zones       []ZoneCycleStatus `json:"zones"`
	OK          int               `json:"ok"`
	Degraded    int               `json:"degraded"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
}

// Count tallies the per-status totals from the zone list.
func (s *CycleSummary) Count() {
	s.OK, s.Degraded, s.Failed, s.Skipped = 0, 0, 0, 0
	for _, z := range s.Zones {
		switch z.Status {
		case ZoneOK:
			s.OK++
		case ZoneDegraded:
			s.Degraded++
		case ZoneFailed:
			s.Failed++
		case ZoneSkipped:
			s.Skipped++
		}
	}
}
