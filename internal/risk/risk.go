// Package risk computes per-zone risk scores from local signals and diffuses
// them across the zone graph to capture cascading effects.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// Config holds the fixed scoring weights, normalization ranges, damping
// factor, round count, and tier cutoffs. Operational tuning parameters, not
// learned per cycle.
type Config struct {
	Damping           float64
	PropagationRounds int
	HighCutoff        float64
	MediumCutoff      float64
	MaxPriority       int
	MaxCriticalSites  int
	MaxOpenAlerts     int
	Weights           types.RiskWeights
}

func (c *Config) withDefaults() {
	if c.Damping <= 0 || c.Damping >= 1 {
		c.Damping = 0.3
	}
	if c.PropagationRounds <= 0 {
		c.PropagationRounds = 1
	}
	if c.HighCutoff <= 0 {
		c.HighCutoff = 60
	}
	if c.MediumCutoff <= 0 {
		c.MediumCutoff = 35
	}
	if c.MaxPriority <= 0 {
		c.MaxPriority = 5
	}
	if c.MaxCriticalSites <= 0 {
		c.MaxCriticalSites = 3
	}
	if c.MaxOpenAlerts <= 0 {
		c.MaxOpenAlerts = 5
	}
	w := c.Weights
	if w.GridPriority+w.CriticalSites+w.AirQuality+w.Demand+w.OpenAlerts == 0 {
		c.Weights = types.RiskWeights{
			GridPriority:  0.25,
			CriticalSites: 0.20,
			AirQuality:    0.30,
			Demand:        0.15,
			OpenAlerts:    0.10,
		}
	}
}

// Signals are the local inputs for one zone's base score, gathered during
// the per-zone stage of the cycle.
type Signals struct {
	Zone        types.Zone
	AirTier     types.PolicyTier
	DemandRatio float64 // current demand / policy watch threshold; 0 when unknown
	OpenAlerts  int
}

// Engine computes base scores, runs propagation, and classifies tiers.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk engine with defaults applied.
func NewEngine(cfg Config) *Engine {
	cfg.withDefaults()
	return &Engine{cfg: cfg}
}

// BaseScore computes the 0-100 weighted local score and its factor
// breakdown. Returns ErrComputation on non-finite results so one zone's bad
// signal never poisons the cycle.
func (e *Engine) BaseScore(sig Signals) (float64, map[string]float64, error) {
	w := e.cfg.Weights

	priority := float64(e.cfg.MaxPriority-sig.Zone.GridPriority+1) / float64(e.cfg.MaxPriority)
	priority = clamp01(priority)

	critical := clamp01(float64(len(sig.Zone.CriticalSites)) / float64(e.cfg.MaxCriticalSites))

	air := float64(sig.AirTier.Rank()) / float64(types.TierEmergency.Rank())
	if air < 0 {
		air = 0
	}

	// A demand ratio of 2x the watch threshold saturates the factor.
	demand := clamp01(sig.DemandRatio / 2)

	alerts := clamp01(float64(sig.OpenAlerts) / float64(e.cfg.MaxOpenAlerts))

	factors := map[string]float64{
		"grid_priority":  round2(100 * w.GridPriority * priority),
		"critical_sites": round2(100 * w.CriticalSites * critical),
		"air_quality":    round2(100 * w.AirQuality * air),
		"demand":         round2(100 * w.Demand * demand),
		"open_alerts":    round2(100 * w.OpenAlerts * alerts),
	}

	var score float64
	for _, v := range factors {
		score += v
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, nil, fmt.Errorf("%w: non-finite base score for zone %s", types.ErrComputation, sig.Zone.ID)
	}
	return clamp(score, 0, 100), factors, nil
}

// Propagate runs the configured number of diffusion rounds:
//
//	score'_i = score_i + α · mean(score_j for j in neighbors(i))
//
// Each round reads only the previous round's frozen snapshot, so the result
// is order-independent, and the added term is never negative, so no zone's
// score drops below its base.
func (e *Engine) Propagate(graph *topology.Graph, base map[string]float64) map[string]float64 {
	current := make(map[string]float64, len(base))
	for id, s := range base {
		current[id] = s
	}

	for round := 0; round < e.cfg.PropagationRounds; round++ {
		next := make(map[string]float64, len(current))
		for id, s := range current {
			neighbors := graph.Neighbors(id)
			var sum float64
			var n int
			for _, nb := range neighbors {
				if ns, ok := current[nb]; ok {
					sum += ns
					n++
				}
			}
			if n > 0 {
				s += e.cfg.Damping * (sum / float64(n))
			}
			next[id] = clamp(s, 0, 100)
		}
		current = next
	}
	return current
}

// Classify maps a final score to its tier using the fixed cutoffs.
func (e *Engine) Classify(score float64) types.RiskTier {
	switch {
	case score >= e.cfg.HighCutoff:
		return types.RiskHigh
	case score >= e.cfg.MediumCutoff:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// Compute runs the full stage for a cycle: base scores for every zone with
// signals, then propagation over the graph, then classification. All base
// scores are fixed before the first round runs.
func (e *Engine) Compute(graph *topology.Graph, signals map[string]Signals, cycleID string, now time.Time) (map[string]types.RiskScore, error) {
	base := make(map[string]float64, len(signals))
	factors := make(map[string]map[string]float64, len(signals))
	var firstErr error

	for id, sig := range signals {
		s, f, err := e.BaseScore(sig)
		if err != nil {
			// Isolate the zone: it gets no score this cycle, the rest of
			// the graph proceeds without it.
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		base[id] = s
		factors[id] = f
	}

	final := e.Propagate(graph, base)

	out := make(map[string]types.RiskScore, len(final))
	for id, score := range final {
		f := factors[id]
		f["propagation"] = round2(score - base[id])
		out[id] = types.RiskScore{
			ZoneID:     id,
			Score:      round2(score),
			BaseScore:  round2(base[id]),
			Tier:       e.Classify(score),
			Factors:    f,
			CycleID:    cycleID,
			ComputedAt: now,
		}
	}
	return out, firstErr
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
