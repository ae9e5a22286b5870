package dynamo

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gridpulse/gridpulse/pkg/types"
)

func TestReadingSKSortsChronologically(t *testing.T) {
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	var keys []string
	for i := 0; i < 5; i++ {
		keys = append(keys, readingSK(types.MetricEnergy, base.Add(time.Duration(i)*time.Hour)))
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	assert.Equal(t, keys, sorted)
}

func TestReadingSKSeparatesMetrics(t *testing.T) {
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	energy := readingSK(types.MetricEnergy, at)
	aqi := readingSK(types.MetricAQI, at)

	assert.NotEqual(t, energy, aqi)
	assert.Contains(t, energy, readingPrefix(types.MetricEnergy))
	assert.Contains(t, aqi, readingPrefix(types.MetricAQI))
}

func TestTimeOrderedSKsPadMillis(t *testing.T) {
	early := time.UnixMilli(999)
	late := time.UnixMilli(1000000)

	// Zero-padded millis keep lexicographic order equal to time order.
	assert.Less(t, cycleSK(early, "c1"), cycleSK(late, "c2"))
	assert.Less(t, alertListSK(early, "a1"), alertListSK(late, "a2"))
	assert.Less(t, closedEventSK(early, "e1"), closedEventSK(late, "e2"))
	assert.Less(t, riskHistSK(early, "c1"), riskHistSK(late, "c2"))
}

func TestRetentionTTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, retentionTTL("24h"))
	assert.Equal(t, defaultReadingTTL, retentionTTL(""))
	assert.Equal(t, defaultReadingTTL, retentionTTL("monthly"))
	assert.Equal(t, defaultReadingTTL, retentionTTL("-1h"))
}

func TestZoneKeys(t *testing.T) {
	assert.Equal(t, "ZONE#za", zonePK("za"))
	assert.Equal(t, "PSTATE#aqi", policyStateSK(types.MetricAQI))
	assert.Equal(t, "EVENT#OPEN#energy", openEventSK(types.MetricEnergy))
	assert.Equal(t, "EVENT#za#energy", openEventListSK("za", types.MetricEnergy))
	assert.Equal(t, "LOCK#cycle:runner", lockPK("cycle:runner"))
}
