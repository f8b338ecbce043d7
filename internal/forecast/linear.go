package forecast

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/airexposure/airexposure/internal/analysis"
)

// linearMinHistory is the shortest series the linear estimator accepts.
const linearMinHistory = 3

// Linear fits value = a + b·index per pollutant and extrapolates forward.
type Linear struct{}

// NewLinear creates the fallback estimator.
func NewLinear() *Linear { return &Linear{} }

// Name implements Estimator.
func (*Linear) Name() string { return MethodLinear }

// Available implements Estimator; the linear estimator is always available.
func (*Linear) Available(context.Context) bool { return true }

// MinHistory implements Estimator.
func (*Linear) MinHistory() int { return linearMinHistory }

// Forecast implements Estimator.
func (l *Linear) Forecast(_ context.Context, series []analysis.DailyRecord, horizon int) ([]Day, error) {
	if len(series) < linearMinHistory {
		return nil, ErrInsufficientHistory
	}
	no2 := extrapolate(analysis.NO2Values(series), horizon)
	pm25 := extrapolate(analysis.PM25Values(series), horizon)
	return buildDays(series[len(series)-1].Date, no2, pm25), nil
}

func extrapolate(values []float64, horizon int) []float64 {
	n := len(values)
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(x, values, nil, false)

	out := make([]float64, horizon)
	for i := range out {
		out[i] = alpha + beta*float64(n+i)
	}
	return out
}
