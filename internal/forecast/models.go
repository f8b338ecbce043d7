// Package forecast extrapolates a daily exposure series a few days forward.
// A remote seasonal model is preferred when it is configured and enabled;
// ordinary least squares is always available as the fallback.
package forecast

import (
	"context"
	"errors"
	"math"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/aqi"
)

// DefaultHorizon is the number of days forecast when none is given.
const DefaultHorizon = 7

// Estimator method names.
const (
	MethodLinear   = "linear_regression"
	MethodSeasonal = "seasonal"
)

var (
	// ErrInsufficientHistory is returned when the series is shorter than
	// the estimator's minimum history.
	ErrInsufficientHistory = errors.New("insufficient history for forecast")

	// ErrInvalidResponse is returned when the seasonal model replies with
	// the wrong number of values.
	ErrInvalidResponse = errors.New("invalid forecast response")
)

// Day is one forecast day.
type Day struct {
	Date           analysis.Date `json:"date"`
	NO2            float64       `json:"no2_level"`
	PM25           float64       `json:"pm25_level"`
	PollutionIndex float64       `json:"pollution_index"`
	IsForecast     bool          `json:"is_forecast"`
}

// Result is the outcome of Service.Forecast.
type Result struct {
	Status analysis.Status `json:"status"`
	Method string          `json:"method,omitempty"`
	Days   []Day           `json:"forecasts"`
}

// Estimator produces per-pollutant forecasts from a daily series.
type Estimator interface {
	Name() string
	// Available reports whether the estimator can be dispatched to.
	Available(ctx context.Context) bool
	// MinHistory is the minimum number of observed days required.
	MinHistory() int
	Forecast(ctx context.Context, series []analysis.DailyRecord, horizon int) ([]Day, error)
}

// buildDays turns raw pollutant predictions into forecast days following
// the last observed date. Concentrations are clamped to zero.
func buildDays(last analysis.Date, no2, pm25 []float64) []Day {
	days := make([]Day, len(no2))
	for i := range no2 {
		n := clamp(no2[i])
		p := clamp(pm25[i])
		days[i] = Day{
			Date:           last.AddDays(i + 1),
			NO2:            n,
			PM25:           p,
			PollutionIndex: aqi.PollutionIndex(n, p),
			IsForecast:     true,
		}
	}
	return days
}

func clamp(v float64) float64 {
	return math.Max(0, analysis.Finite(v))
}
