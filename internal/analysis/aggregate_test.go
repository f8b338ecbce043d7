package analysis_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/aqi"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func no2Sample(ts time.Time, value float64) analysis.Sample {
	return analysis.Sample{Timestamp: ts, NO2: value, Latitude: 21.1458, Longitude: 79.0882, Location: "Nagpur"}
}

func pm25Sample(ts time.Time, value float64) analysis.Sample {
	return analysis.Sample{Timestamp: ts, PM25: value, Latitude: 21.1458, Longitude: 79.0882, Location: "Nagpur"}
}

// dailySamples builds one NO2 and one PM2.5 sample per day.
func dailySamples(no2, pm25 []float64) ([]analysis.Sample, []analysis.Sample) {
	var left, right []analysis.Sample
	for i := range no2 {
		ts := day0.AddDate(0, 0, i)
		left = append(left, no2Sample(ts, no2[i]))
		right = append(right, pm25Sample(ts, pm25[i]))
	}
	return left, right
}

func TestAnalyze_SinglePairMatchesFormulas(t *testing.T) {
	result := analysis.Analyze(
		[]analysis.Sample{no2Sample(day0, 48)},
		[]analysis.Sample{pm25Sample(day0, 62)},
	)

	require.Len(t, result.Series, 1)
	rec := result.Series[0]
	assert.Equal(t, "2023-01-02", rec.Date.String())
	assert.Equal(t, 48.0, rec.NO2)
	assert.Equal(t, 62.0, rec.PM25)
	assert.InDelta(t, aqi.PollutionIndex(48, 62), rec.PollutionIndex, 1e-12)
	assert.InDelta(t, aqi.Composite(48, 62), rec.AQI, 1e-12)
	assert.InDelta(t, aqi.HealthRisk(48, 62), rec.HealthRisk, 1e-12)
	assert.False(t, rec.IsAnomaly)
	assert.Equal(t, "Nagpur", rec.Location)

	require.NotNil(t, result.Summary)
	assert.Equal(t, 1, result.Summary.DaysExceedingWHONO2)
	assert.Equal(t, 1, result.Summary.DaysExceedingWHOPM)
	assert.Empty(t, result.Summary.Trend)
}

func TestAnalyze_InnerJoinDropsUnmatched(t *testing.T) {
	no2 := []analysis.Sample{
		no2Sample(day0, 30),
		no2Sample(day0.AddDate(0, 0, 1), 35),
		no2Sample(day0.AddDate(0, 0, 2), 40),
	}
	pm25 := []analysis.Sample{
		pm25Sample(day0.AddDate(0, 0, 1), 60),
		pm25Sample(day0.AddDate(0, 0, 2), 65),
		pm25Sample(day0.AddDate(0, 0, 3), 70),
	}

	result := analysis.Analyze(no2, pm25)

	require.Len(t, result.Series, 2)
	assert.Equal(t, "2023-01-03", result.Series[0].Date.String())
	assert.Equal(t, "2023-01-04", result.Series[1].Date.String())
}

func TestAnalyze_SameDayReadingsAreAveraged(t *testing.T) {
	morning := day0.Add(8 * time.Hour)
	evening := day0.Add(20 * time.Hour)

	no2 := []analysis.Sample{
		{Timestamp: morning, NO2: 20, Latitude: 21.0, Longitude: 79.0, Location: "Nagpur"},
		{Timestamp: evening, NO2: 60, Latitude: 21.2, Longitude: 79.2, Location: "Elsewhere"},
	}
	pm25 := []analysis.Sample{pm25Sample(morning, 10), pm25Sample(evening, 30)}

	result := analysis.Analyze(no2, pm25)

	require.Len(t, result.Series, 1)
	rec := result.Series[0]
	assert.InDelta(t, 40.0, rec.NO2, 1e-12)
	assert.InDelta(t, 20.0, rec.PM25, 1e-12)
	assert.InDelta(t, 21.1, rec.Latitude, 1e-12)
	assert.InDelta(t, 79.1, rec.Longitude, 1e-12)
	assert.InDelta(t, aqi.PollutionIndex(40, 20), rec.PollutionIndex, 1e-12)
	assert.Equal(t, "Nagpur", rec.Location, "location comes from the first joined row")

	// one of two readings exceeded the NO2 guideline; 0.5 truncates to 0 days
	assert.Equal(t, 0, result.Summary.DaysExceedingWHONO2)
}

func TestAnalyze_EmptyJoin(t *testing.T) {
	result := analysis.Analyze(
		[]analysis.Sample{no2Sample(day0, 30)},
		[]analysis.Sample{pm25Sample(day0.Add(time.Hour), 60)},
	)

	assert.Empty(t, result.Series)
	assert.NotNil(t, result.Series)
	assert.Nil(t, result.Summary)
	assert.Equal(t, "", result.Location())
}

func TestAnalyze_SortedByDate(t *testing.T) {
	no2 := []analysis.Sample{
		no2Sample(day0.AddDate(0, 0, 2), 30),
		no2Sample(day0, 31),
		no2Sample(day0.AddDate(0, 0, 1), 32),
	}
	pm25 := []analysis.Sample{
		pm25Sample(day0, 50),
		pm25Sample(day0.AddDate(0, 0, 1), 51),
		pm25Sample(day0.AddDate(0, 0, 2), 52),
	}

	result := analysis.Analyze(no2, pm25)

	require.Len(t, result.Series, 3)
	for i := 1; i < len(result.Series); i++ {
		assert.True(t, result.Series[i-1].Date.Before(result.Series[i].Date))
	}
}

func TestAnalyze_Summary(t *testing.T) {
	no2, pm25 := dailySamples([]float64{30, 45, 50, 20}, []float64{20, 30, 40, 10})

	result := analysis.Analyze(no2, pm25)

	require.NotNil(t, result.Summary)
	s := result.Summary
	assert.InDelta(t, 36.25, s.AvgNO2, 1e-12)
	assert.InDelta(t, 25.0, s.AvgPM25, 1e-12)
	assert.Equal(t, 50.0, s.MaxNO2)
	assert.Equal(t, 40.0, s.MaxPM25)
	assert.Equal(t, 2, s.DaysExceedingWHONO2)
	assert.Equal(t, 2, s.DaysExceedingWHOPM)
	assert.Contains(t, s.Trend, analysis.TrendKeyNO2)
	assert.Contains(t, s.Trend, analysis.TrendKeyPM25)
}

func TestAggregate_MatchesAnalyzeSeries(t *testing.T) {
	no2, pm25 := dailySamples([]float64{30, 45, 50}, []float64{20, 30, 40})

	assert.Len(t, analysis.Aggregate(no2, pm25), 3)
	assert.Nil(t, analysis.Aggregate(no2, nil))
}
