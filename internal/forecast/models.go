package forecast

import (
	"fmt"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// model is one forecasting strategy. Strategies are deterministic: the same
// series always yields the same prediction.
type model interface {
	name() string
	usable(n int) bool
	predict(series []float64) (float64, error)
}

// arModel is a first-order autoregressive model fit by ordinary least
// squares: x_t = a + b*x_{t-1}.
type arModel struct {
	minSamples int
}

func (m *arModel) name() string { return "ar1" }

func (m *arModel) usable(n int) bool { return n >= m.minSamples && n >= 3 }

func (m *arModel) predict(series []float64) (float64, error) {
	n := len(series)
	if n < 3 {
		return 0, types.ErrDataUnavailable
	}
	var sumX, sumY, sumXY, sumXX float64
	pairs := float64(n - 1)
	for i := 1; i < n; i++ {
		x, y := series[i-1], series[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := pairs*sumXX - sumX*sumX
	if denom == 0 {
		// Constant series: next value is the constant.
		return series[n-1], nil
	}
	b := (pairs*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / pairs
	return a + b*series[n-1], nil
}

// seasonalNaive predicts the mean of the values one, two, ... seasons back
// at the same offset.
type seasonalNaive struct {
	period int
}

func (m *seasonalNaive) name() string { return "seasonal-naive" }

func (m *seasonalNaive) usable(n int) bool { return m.period > 0 && n >= m.period }

func (m *seasonalNaive) predict(series []float64) (float64, error) {
	n := len(series)
	if n < m.period {
		return 0, types.ErrDataUnavailable
	}
	var sum float64
	var count int
	for i := n - m.period; i >= 0; i -= m.period {
		sum += series[i]
		count++
	}
	if count == 0 {
		return 0, types.ErrDataUnavailable
	}
	return sum / float64(count), nil
}

// linearModel is a least-squares trend line over the sample index, the
// simplest fallback when even one seasonal period is not available.
type linearModel struct{}

func (m *linearModel) name() string { return "linear" }

func (m *linearModel) usable(n int) bool { return n >= 2 }

func (m *linearModel) predict(series []float64) (float64, error) {
	n := len(series)
	if n < 2 {
		return 0, types.ErrDataUnavailable
	}
	var sumT, sumY, sumTY, sumTT float64
	for i, y := range series {
		t := float64(i)
		sumT += t
		sumY += y
		sumTY += t * y
		sumTT += t * t
	}
	fn := float64(n)
	denom := fn*sumTT - sumT*sumT
	if denom == 0 {
		return series[n-1], nil
	}
	b := (fn*sumTY - sumT*sumY) / denom
	a := (sumY - b*sumT) / fn
	pred := a + b*fn
	if pred < 0 {
		pred = 0
	}
	return pred, nil
}

// sequenceModel applies offline-trained lag weights to the tail of the
// series. The artifact carries the weights, bias, and held-out validation
// RMSE from training.
type sequenceModel struct {
	artifact *Artifact
}

func (m *sequenceModel) name() string { return m.artifact.Model }

func (m *sequenceModel) usable(n int) bool { return n >= len(m.artifact.Weights) }

func (m *sequenceModel) predict(series []float64) (float64, error) {
	lags := len(m.artifact.Weights)
	n := len(series)
	if n < lags {
		return 0, fmt.Errorf("%w: %d samples, model needs %d lags", types.ErrDataUnavailable, n, lags)
	}
	pred := m.artifact.Bias
	tail := series[n-lags:]
	for i, w := range m.artifact.Weights {
		pred += w * tail[i]
	}
	if pred < 0 {
		pred = 0
	}
	return pred, nil
}
