// Package anomaly flags consumption readings that deviate from learned or
// baseline normal behavior. Two complementary modes: reconstruction scoring
// against an offline-trained model, and a ratio-based fallback against the
// entity's same-hour historical baseline.
package anomaly

import (
	"log/slog"
	"time"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Config holds detection parameters.
type Config struct {
	RatioThreshold     float64 // actual/baseline multiplier, default 2.0
	MinBaselineSamples int     // minimum same-hour history for reconstruction scoring, default 12
	ArtifactPath       string
}

func (c *Config) withDefaults() {
	if c.RatioThreshold <= 0 {
		c.RatioThreshold = 2.0
	}
	if c.MinBaselineSamples <= 0 {
		c.MinBaselineSamples = 12
	}
}

// Detector scores the most recent consumption reading for a zone against
// its history. It has no side effects; the caller decides whether findings
// become alerts.
type Detector struct {
	cfg    Config
	model  *Model // nil when the artifact is unavailable
	logger *slog.Logger
}

// NewDetector creates a Detector, loading the reconstruction model if
// configured. Artifact load failure is logged degradation, never fatal.
func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{cfg: cfg, logger: logger}

	if cfg.ArtifactPath != "" {
		m, err := LoadModel(cfg.ArtifactPath)
		if err != nil {
			logger.Warn("reconstruction model unavailable, using ratio fallback",
				"path", cfg.ArtifactPath, "error", err)
		} else {
			d.model = m
			logger.Info("reconstruction model loaded",
				"model", m.Name, "features", m.Features(), "threshold", m.Threshold)
		}
	}
	return d
}

// Detect examines the newest reading in the window (store order: newest
// first) against the baseline built from the remaining readings taken at the
// same hour of day. Deterministic: identical window and artifact always
// yield the identical flagged set.
func (d *Detector) Detect(zoneID string, readings []types.Reading) []types.AnomalyFinding {
	if len(readings) < 2 {
		return nil
	}
	latest := readings[0]
	baseline, samples := sameHourBaseline(readings[1:], latest.Timestamp)
	if samples == 0 || baseline <= 0 {
		return nil
	}

	if d.model != nil && samples >= d.cfg.MinBaselineSamples {
		score := d.model.ReconstructionError(featureVector(latest, baseline))
		if score > d.model.Threshold {
			return []types.AnomalyFinding{{
				ZoneID:    zoneID,
				Observed:  latest.Value,
				Baseline:  baseline,
				Score:     score,
				Mode:      types.ModeReconstruction,
				Timestamp: latest.Timestamp,
			}}
		}
		return nil
	}

	ratio := latest.Value / baseline
	if ratio > d.cfg.RatioThreshold {
		return []types.AnomalyFinding{{
			ZoneID:    zoneID,
			Observed:  latest.Value,
			Baseline:  baseline,
			Ratio:     ratio,
			Mode:      types.ModeRatio,
			Timestamp: latest.Timestamp,
		}}
	}
	return nil
}

// sameHourBaseline is the historical mean for the same hour of day.
func sameHourBaseline(history []types.Reading, at time.Time) (float64, int) {
	hour := at.UTC().Hour()
	var sum float64
	var n int
	for _, r := range history {
		if r.Timestamp.UTC().Hour() == hour {
			sum += r.Value
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// featureVector builds the reconstruction model input: observed value,
// same-hour baseline, deviation, and hour of day.
func featureVector(latest types.Reading, baseline float64) []float64 {
	return []float64{
		latest.Value,
		baseline,
		latest.Value - baseline,
		float64(latest.Timestamp.UTC().Hour()),
	}
}
