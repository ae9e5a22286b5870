package forecast

import "math"

// rollingAccuracy backtests a model with one-step-ahead predictions over the
// tail of the series and returns trailing RMSE and R². Returns zeros when
// the series is too short to backtest.
func rollingAccuracy(m model, series []float64, steps int) (rmse, r2 float64) {
	n := len(series)
	if steps > n-2 {
		steps = n - 2
	}
	if steps < 2 {
		return 0, 0
	}

	var preds, actuals []float64
	for i := n - steps; i < n; i++ {
		if !m.usable(i) {
			continue
		}
		p, err := m.predict(series[:i])
		if err != nil {
			continue
		}
		preds = append(preds, p)
		actuals = append(actuals, series[i])
	}
	if len(preds) < 2 {
		return 0, 0
	}

	var mean float64
	for _, a := range actuals {
		mean += a
	}
	mean /= float64(len(actuals))

	var sse, sst float64
	for i := range preds {
		d := actuals[i] - preds[i]
		sse += d * d
		dm := actuals[i] - mean
		sst += dm * dm
	}

	rmse = math.Sqrt(sse / float64(len(preds)))
	if sst > 0 {
		r2 = 1 - sse/sst
	}
	return rmse, r2
}
