// Package exposure runs the regional analysis pipeline: pollutant and weather
// suppliers feed the daily series, which is then enriched with forecasts,
// anomaly analysis, weather correlation, risk zones and a narrative insight.
package exposure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/forecast"
	"github.com/airexposure/airexposure/internal/riskzone"
	"github.com/airexposure/airexposure/internal/weather"
)

// MaxRangeDays is the longest accepted request range.
const MaxRangeDays = 366

// Enrichment keys reported in Report.Enrichments.
const (
	EnrichmentForecast           = "forecast"
	EnrichmentInsight            = "insight"
	EnrichmentMultivariate       = "multivariate_anomalies"
	EnrichmentWeatherCorrelation = "weather_correlation"
	EnrichmentTrendExplanation   = "trend_explanation"
)

var (
	// ErrInvalidDate is returned when a date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRange is returned when the end precedes the start or the
	// range is longer than MaxRangeDays.
	ErrInvalidRange = errors.New("invalid date range")
)

// Request identifies one regional analysis.
type Request struct {
	Region string
	Start  analysis.Date
	End    analysis.Date
}

// AnomalyAnalysis is the multivariate anomaly annex.
type AnomalyAnalysis struct {
	Anomalies []analysis.MultivariateAnomaly `json:"anomalies"`
	Count     int                            `json:"count"`
}

// Summary is the analysis summary plus the enrichment annexes.
type Summary struct {
	analysis.Summary

	Forecasts          []forecast.Day             `json:"forecasts,omitempty"`
	ForecastMethod     string                     `json:"forecast_method,omitempty"`
	Insights           string                     `json:"insights,omitempty"`
	InsightSource      string                     `json:"insight_source,omitempty"`
	AnomalyAnalysis    *AnomalyAnalysis           `json:"anomaly_analysis,omitempty"`
	WeatherCorrelation *weather.CorrelationResult `json:"weather_correlation,omitempty"`
	TrendExplanation   string                     `json:"trend_explanation,omitempty"`
}

// Report is the enriched outcome of one regional analysis.
type Report struct {
	Region      string                     `json:"region"`
	Start       analysis.Date              `json:"start_date"`
	End         analysis.Date              `json:"end_date"`
	Series      []analysis.DailyRecord     `json:"pollutionLevels"`
	Summary     *Summary                   `json:"summary"`
	RiskZones   []riskzone.Zone            `json:"riskZones"`
	Enrichments map[string]analysis.Status `json:"enrichments"`
}

// HighRiskZones counts zones classified as high risk.
func (r *Report) HighRiskZones() int {
	n := 0
	for _, z := range r.RiskZones {
		if z.RiskLevel == riskzone.LevelHigh {
			n++
		}
	}
	return n
}

// AffectedPopulation sums the estimated affected population of all zones.
func (r *Report) AffectedPopulation() int {
	total := 0
	for _, z := range r.RiskZones {
		total += z.EstimatedAffectedPopulation
	}
	return total
}

// ParseRange parses and validates a YYYY-MM-DD date range. Both ends are
// inclusive.
func ParseRange(start, end string) (analysis.Date, analysis.Date, error) {
	from, err := analysis.ParseDate(strings.TrimSpace(start))
	if err != nil {
		return analysis.Date{}, analysis.Date{}, fmt.Errorf("%w: start_date %q", ErrInvalidDate, start)
	}
	to, err := analysis.ParseDate(strings.TrimSpace(end))
	if err != nil {
		return analysis.Date{}, analysis.Date{}, fmt.Errorf("%w: end_date %q", ErrInvalidDate, end)
	}
	if to.Before(from) {
		return analysis.Date{}, analysis.Date{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidRange)
	}
	if from.AddDays(MaxRangeDays).Before(to) {
		return analysis.Date{}, analysis.Date{}, fmt.Errorf("%w: longer than %d days", ErrInvalidRange, MaxRangeDays)
	}
	return from, to, nil
}
