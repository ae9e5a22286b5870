package types

// Metric identifies a reading channel for a zone.
type Metric string

// Metric values enumerate the reading channels the pipeline evaluates.
const (
	MetricEnergy      Metric = "energy"
	MetricAQI         Metric = "aqi"
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
)

// ValidMetric reports whether m is a known metric type.
func ValidMetric(m Metric) bool {
	switch m {
	case MetricEnergy, MetricAQI, MetricTemperature, MetricHumidity:
		return true
	}
	return false
}

// PolicyTier is a severity level in the active policy's threshold ladder.
type PolicyTier string

// PolicyTier values, ordered by severity. NORMAL is the resting state and
// carries no threshold.
const (
	TierNormal    PolicyTier = "NORMAL"
	TierWatch     PolicyTier = "WATCH"
	TierAlert     PolicyTier = "ALERT"
	TierEmergency PolicyTier = "EMERGENCY"
)

var tierRanks = map[PolicyTier]int{
	TierNormal:    0,
	TierWatch:     1,
	TierAlert:     2,
	TierEmergency: 3,
}

// Rank returns the severity ordinal of a tier (NORMAL=0 .. EMERGENCY=3).
// Unknown tiers rank below NORMAL.
func (t PolicyTier) Rank() int {
	if r, ok := tierRanks[t]; ok {
		return r
	}
	return -1
}

// Above reports whether t is strictly more severe than other.
func (t PolicyTier) Above(other PolicyTier) bool { return t.Rank() > other.Rank() }

// MaxTier returns the more severe of two tiers.
func MaxTier(a, b PolicyTier) PolicyTier {
	if b.Above(a) {
		return b
	}
	return a
}

// RiskTier classifies a zone's final risk score.
type RiskTier string

// RiskTier values from lowest to highest.
const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// AlertKind classifies what produced an alert.
type AlertKind string

// AlertKind values enumerate the alert producers.
const (
	AlertThresholdBreach AlertKind = "threshold_breach"
	AlertAnomaly         AlertKind = "anomaly"
	AlertSystem          AlertKind = "system"
)

// ZoneStatus is the per-zone outcome of one processing cycle.
type ZoneStatus string

// ZoneStatus values. A cycle summary never drops a zone without one of these.
const (
	ZoneOK       ZoneStatus = "ok"
	ZoneDegraded ZoneStatus = "degraded"
	ZoneFailed   ZoneStatus = "failed"
	ZoneSkipped  ZoneStatus = "skipped"
)

// ActionClass groups recommended actions by how aggressive they are.
type ActionClass string

// ActionClass values. LoadShed-class actions are never issued to zones with
// critical infrastructure.
const (
	ActionLoadShed ActionClass = "load_shed"
	ActionProtect  ActionClass = "protect"
	ActionEmission ActionClass = "emission"
	ActionAdvisory ActionClass = "advisory"
)

// AnomalyMode identifies which detection path flagged a reading.
type AnomalyMode string

const (
	ModeReconstruction AnomalyMode = "reconstruction"
	ModeRatio          AnomalyMode = "ratio"
)

// SinkType defines the alert sink backend.
type SinkType string

// SinkType values enumerate the supported alert sink backends.
const (
	SinkConsole SinkType = "console"
	SinkFile    SinkType = "file"
	SinkWebhook SinkType = "webhook"
)
