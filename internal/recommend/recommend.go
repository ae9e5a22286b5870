// Package recommend turns a zone's assessed state into a ranked action list.
// Generation is a pure function of its input: same state, same actions, no
// store access and no clock.
package recommend

import (
	"sort"
	"time"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Input is the assessed state for one zone at the end of a cycle.
type Input struct {
	Zone       types.Zone
	RiskTier   types.RiskTier
	DemandTier types.PolicyTier
	AirTier    types.PolicyTier
	Anomalies  int
}

// catalog is the fixed action set. Recommendations are always drawn from
// here, never synthesized, so operators see a stable vocabulary.
var catalog = map[string]types.Recommendation{
	"shed_load": {
		Action:   "Shed non-essential load",
		Class:    types.ActionLoadShed,
		Priority: 1,
	},
	"stage_reserves": {
		Action:   "Stage reserve generation capacity",
		Class:    types.ActionLoadShed,
		Priority: 2,
	},
	"protect_critical": {
		Action:   "Reroute supply to protect critical sites",
		Class:    types.ActionProtect,
		Priority: 1,
	},
	"verify_backup": {
		Action:   "Verify backup power at critical sites",
		Class:    types.ActionProtect,
		Priority: 2,
	},
	"restrict_emissions": {
		Action:   "Activate emission restriction protocol",
		Class:    types.ActionEmission,
		Priority: 2,
	},
	"issue_air_advisory": {
		Action:   "Issue air quality advisory",
		Class:    types.ActionAdvisory,
		Priority: 3,
	},
	"audit_consumption": {
		Action:   "Audit flagged consumption records",
		Class:    types.ActionAdvisory,
		Priority: 3,
	},
	"monitor": {
		Action:   "Continue monitoring at elevated cadence",
		Class:    types.ActionAdvisory,
		Priority: 4,
	},
}

// Generate produces the ordered action list for one zone. Load-shedding is
// never recommended for a zone hosting critical infrastructure; a protective
// action replaces it instead.
func Generate(in Input, cycleID string, now time.Time) types.RecommendationSet {
	keys := selectActions(in)

	actions := make([]types.Recommendation, 0, len(keys))
	for _, k := range keys {
		r := catalog[k]
		r.Reason = reasonFor(k, in)
		actions = append(actions, r)
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})

	return types.RecommendationSet{
		ZoneID:     in.Zone.ID,
		CycleID:    cycleID,
		RiskTier:   in.RiskTier,
		PolicyTier: types.MaxTier(in.DemandTier, in.AirTier),
		Actions:    actions,
		CreatedAt:  now,
	}
}

func selectActions(in Input) []string {
	var keys []string
	add := func(k string) {
		for _, have := range keys {
			if have == k {
				return
			}
		}
		keys = append(keys, k)
	}

	switch in.RiskTier {
	case types.RiskHigh:
		if in.Zone.IsCritical() {
			add("protect_critical")
			add("verify_backup")
		} else {
			add("shed_load")
		}
	case types.RiskMedium:
		add("monitor")
	}

	if in.DemandTier.Above(types.TierWatch) {
		if in.Zone.IsCritical() {
			add("protect_critical")
		} else {
			add("stage_reserves")
		}
	}

	if in.AirTier.Above(types.TierNormal) {
		add("issue_air_advisory")
	}
	if in.AirTier.Above(types.TierAlert) {
		add("restrict_emissions")
	}

	if in.Anomalies > 0 {
		add("audit_consumption")
	}

	return keys
}

func reasonFor(key string, in Input) string {
	switch key {
	case "shed_load", "stage_reserves":
		return "demand at tier " + string(in.DemandTier) + ", risk " + string(in.RiskTier)
	case "protect_critical", "verify_backup":
		return "critical infrastructure in a " + string(in.RiskTier) + "-risk zone"
	case "restrict_emissions", "issue_air_advisory":
		return "air quality at tier " + string(in.AirTier)
	case "audit_consumption":
		return "flagged consumption records this cycle"
	default:
		return "risk " + string(in.RiskTier)
	}
}
