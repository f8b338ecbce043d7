package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// MinAnomalyDays is the smallest series the z-score detector examines.
	MinAnomalyDays = 6

	// ZScoreThreshold is the absolute z-score above which a day is flagged.
	ZScoreThreshold = 3.0
)

// DetectAnomalies returns the dates whose NO2 or PM2.5 value lies more than
// three population standard deviations from the series mean. Series shorter
// than MinAnomalyDays, or with zero spread, yield no anomalies.
func DetectAnomalies(series []DailyRecord) map[Date]bool {
	flagged := make(map[Date]bool)
	if len(series) < MinAnomalyDays {
		return flagged
	}
	for _, column := range [][]float64{NO2Values(series), PM25Values(series)} {
		for i, z := range zScores(column) {
			if math.Abs(z) > ZScoreThreshold {
				flagged[series[i].Date] = true
			}
		}
	}
	return flagged
}

// zScores standardises values against their mean and population standard
// deviation. A constant column standardises to all zeros.
func zScores(values []float64) []float64 {
	out := make([]float64, len(values))
	m, std := populationMeanStd(values)
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = stat.StdScore(v, m, std)
	}
	return out
}

func populationMeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	m, variance := stat.PopMeanVariance(values, nil)
	if variance <= 0 || math.IsNaN(variance) {
		return m, 0
	}
	return m, math.Sqrt(variance)
}
