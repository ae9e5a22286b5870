package dynamo

import (
	"fmt"
	"time"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// PK/SK prefix constants for the single-table layout.
const (
	prefixZone  = "ZONE#"
	prefixLock  = "LOCK#"
	prefixAlert = "ALERT#"

	pkAlerts       = "ALERTS"
	pkCycles       = "CYCLES"
	pkClosedEvents = "EVENTS#CLOSED"
	pkOpenEvents   = "EVENTS#OPEN"

	skForecast = "FORECAST"
	skRisk     = "RISK"
	skRecs     = "RECS"
	skLock     = "LOCK"
	skAlert    = "ALERT"
)

func zonePK(zoneID string) string   { return prefixZone + zoneID }
func lockPK(key string) string      { return prefixLock + key }
func alertPK(alertID string) string { return prefixAlert + alertID }

func readingSK(metric types.Metric, ts time.Time) string {
	return "READING#" + string(metric) + "#" + ts.UTC().Format(time.RFC3339Nano)
}

func readingPrefix(metric types.Metric) string {
	return "READING#" + string(metric) + "#"
}

func policyStateSK(metric types.Metric) string {
	return "PSTATE#" + string(metric)
}

func openEventSK(metric types.Metric) string {
	return "EVENT#OPEN#" + string(metric)
}

func closedEventSK(ts time.Time, eventID string) string {
	return fmt.Sprintf("EVENT#%013d#%s", ts.UnixMilli(), eventID)
}

func openEventListSK(zoneID string, metric types.Metric) string {
	return "EVENT#" + zoneID + "#" + string(metric)
}

func alertListSK(ts time.Time, alertID string) string {
	return fmt.Sprintf("ALERT#%013d#%s", ts.UnixMilli(), alertID)
}

func riskHistSK(ts time.Time, cycleID string) string {
	return fmt.Sprintf("RISKHIST#%013d#%s", ts.UnixMilli(), cycleID)
}

func cycleSK(ts time.Time, cycleID string) string {
	return fmt.Sprintf("CYCLE#%013d#%s", ts.UnixMilli(), cycleID)
}

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}
