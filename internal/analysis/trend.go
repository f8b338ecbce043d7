package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MinTrendDays is the smallest series a trend is fitted to.
	MinTrendDays = 3

	// SignificanceLevel is the p-value below which a trend is significant.
	SignificanceLevel = 0.05
)

// AnalyzeTrends fits a trend per pollutant. Pollutants with fewer than
// MinTrendDays values are omitted from the map.
func AnalyzeTrends(series []DailyRecord) map[string]TrendResult {
	trends := make(map[string]TrendResult)
	if len(series) < MinTrendDays {
		return trends
	}
	trends[TrendKeyNO2] = FitTrend(NO2Values(series))
	trends[TrendKeyPM25] = FitTrend(PM25Values(series))
	return trends
}

// FitTrend regresses values on their index 0..n-1 by ordinary least squares
// and reports slope, r², the two-sided p-value of the slope and its
// direction. A constant series is stable with p = 1.
func FitTrend(values []float64) TrendResult {
	n := len(values)
	if n < 2 {
		return TrendResult{PValue: 1, Direction: DirectionStable}
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}

	if stat.Variance(values, nil) == 0 {
		return TrendResult{PValue: 1, Direction: DirectionStable}
	}

	alpha, beta := stat.LinearRegression(x, values, nil, false)
	r := stat.Correlation(x, values, nil)
	p := slopePValue(math.Min(r*r, 1), r, n)

	return TrendResult{
		Slope:         Finite(beta),
		RSquared:      Finite(stat.RSquared(x, values, nil, alpha, beta)),
		PValue:        p,
		IsSignificant: p < SignificanceLevel,
		Direction:     direction(beta),
	}
}

// slopePValue is the two-sided p-value of the t statistic
// r·sqrt(df / (1 - r²)) with n - 2 degrees of freedom.
func slopePValue(r2, r float64, n int) float64 {
	df := float64(n - 2)
	if df <= 0 {
		return 1
	}
	if r2 >= 1 {
		return 0
	}
	t := r * math.Sqrt(df/(1-r2))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	return Finite(math.Max(0, math.Min(1, p)))
}

func direction(slope float64) string {
	switch {
	case slope > 0:
		return DirectionIncreasing
	case slope < 0:
		return DirectionDecreasing
	default:
		return DirectionStable
	}
}
