// Package forecast produces short-horizon demand forecasts per zone from an
// ensemble of strategies with a fixed preference order and graceful
// degradation.
package forecast

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gridpulse/gridpulse/pkg/types"
)

const backtestSteps = 12

// Config holds forecasting parameters.
type Config struct {
	HorizonMinutes int
	MinSamples     int
	SeasonPeriod   int
	ArtifactPath   string
}

func (c *Config) withDefaults() {
	if c.HorizonMinutes <= 0 {
		c.HorizonMinutes = 60
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 24
	}
	if c.SeasonPeriod <= 0 {
		c.SeasonPeriod = 24
	}
}

// Engine selects one forecast to publish per zone per cycle. Preference
// order: the offline-trained sequence model when its artifact is present,
// then the autoregressive model, then seasonal-naive, then a plain trend
// line. Below MinSamples only the simple statistical fallbacks are used.
type Engine struct {
	cfg    Config
	seq    *sequenceModel // nil when the artifact is unavailable
	logger *slog.Logger
}

// NewEngine creates an Engine, loading the sequence-model artifact if one is
// configured. A missing artifact is logged as degradation, not an error.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{cfg: cfg, logger: logger}

	if cfg.ArtifactPath != "" {
		artifact, err := LoadArtifact(cfg.ArtifactPath)
		if err != nil {
			logger.Warn("sequence model unavailable, degrading to statistical models",
				"path", cfg.ArtifactPath, "error", err)
		} else {
			e.seq = &sequenceModel{artifact: artifact}
			logger.Info("sequence model loaded",
				"model", artifact.Model, "lags", len(artifact.Weights),
				"validation_rmse", artifact.ValidationRMSE)
		}
	}
	return e
}

// Forecast computes the next-horizon prediction for one zone. Readings are
// the newest-first window from the store. Returns ErrForecastUnavailable
// when no model is usable for the sample count.
func (e *Engine) Forecast(zoneID string, readings []types.Reading, cycleID string, now time.Time) (*types.Forecast, error) {
	series := chronological(readings)
	n := len(series)

	m := e.selectModel(n)
	if m == nil {
		return nil, types.ErrForecastUnavailable
	}

	pred, err := m.predict(series)
	if err != nil {
		if errors.Is(err, types.ErrDataUnavailable) {
			return nil, types.ErrForecastUnavailable
		}
		return nil, err
	}

	rmse, r2 := rollingAccuracy(m, series, backtestSteps)

	return &types.Forecast{
		ZoneID:         zoneID,
		Metric:         types.MetricEnergy,
		HorizonMinutes: e.cfg.HorizonMinutes,
		Predicted:      pred,
		Model:          m.name(),
		RMSE:           rmse,
		R2:             r2,
		SampleCount:    n,
		CycleID:        cycleID,
		CreatedAt:      now,
	}, nil
}

// selectModel applies the fixed preference order for the given sample count.
func (e *Engine) selectModel(n int) model {
	var candidates []model
	if n >= e.cfg.MinSamples {
		if e.seq != nil {
			candidates = append(candidates, e.seq)
		}
		candidates = append(candidates,
			&arModel{minSamples: e.cfg.MinSamples},
			&seasonalNaive{period: e.cfg.SeasonPeriod},
			&linearModel{},
		)
	} else {
		// Below the minimum the engine never trusts the learned model;
		// it falls back to seasonal-naive or a trend line.
		candidates = append(candidates,
			&seasonalNaive{period: e.cfg.SeasonPeriod},
			&linearModel{},
		)
	}
	for _, m := range candidates {
		if m.usable(n) {
			return m
		}
	}
	return nil
}

// chronological reverses a newest-first reading window into an
// oldest-to-newest value series.
func chronological(readings []types.Reading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[len(readings)-1-i] = r.Value
	}
	return out
}
