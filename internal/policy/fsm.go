// Package policy evaluates metric values against the active policy's tiered
// thresholds and drives the per-(zone, metric) constraint state machine.
package policy

import (
	"fmt"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Transition table: from -> allowed tos. Escalation may jump any number of
// tiers in one cycle; de-escalation goes through the hysteresis counter
// before any downward transition is applied.
var validTransitions = map[types.PolicyTier][]types.PolicyTier{
	types.TierNormal:    {types.TierWatch, types.TierAlert, types.TierEmergency},
	types.TierWatch:     {types.TierNormal, types.TierAlert, types.TierEmergency},
	types.TierAlert:     {types.TierNormal, types.TierWatch, types.TierEmergency},
	types.TierEmergency: {types.TierNormal, types.TierWatch, types.TierAlert},
}

// CanTransition checks if moving between two tiers is valid.
func CanTransition(from, to types.PolicyTier) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates a tier change, returning an error if invalid.
func Transition(from, to types.PolicyTier) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsBreached reports whether a tier keeps a constraint event open.
func IsBreached(tier types.PolicyTier) bool { return tier != types.TierNormal }
