package exposure_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/exposure"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/forecast"
	"github.com/airexposure/airexposure/internal/insight"
	"github.com/airexposure/airexposure/internal/region"
	"github.com/airexposure/airexposure/internal/riskzone"
	"github.com/airexposure/airexposure/internal/satellite"
	"github.com/airexposure/airexposure/internal/weather"
)

type capabilities struct {
	disabled map[string]bool
	horizon  int
}

func (c capabilities) IsEnabled(_ context.Context, key string) bool { return !c.disabled[key] }

func (c capabilities) ForecastHorizon(context.Context) int { return c.horizon }

// noPollutants supplies nothing, as a dead upstream without fallback would.
type noPollutants struct{}

func (noPollutants) FetchNO2(context.Context, region.Region, analysis.Date, analysis.Date) []analysis.Sample {
	return nil
}

func (noPollutants) FetchPM25(context.Context, region.Region, analysis.Date, analysis.Date) []analysis.Sample {
	return nil
}

func date(t *testing.T, s string) analysis.Date {
	t.Helper()
	d, err := analysis.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newService(t *testing.T, deps exposure.Dependencies) *exposure.Service {
	t.Helper()
	catalog, err := region.DefaultCatalog("")
	require.NoError(t, err)

	logger := zerolog.Nop()
	if deps.Regions == nil {
		deps.Regions = catalog
	}
	if deps.Pollutants == nil {
		deps.Pollutants = satellite.NewService(satellite.DefaultConfig(), nil, nil, nil, logger)
	}
	if deps.Zones == nil {
		deps.Zones = riskzone.NewClassifier(riskzone.DefaultConfig(), catalog, logger)
	}

	svc, err := exposure.NewService(exposure.Config{}, deps, logger)
	require.NoError(t, err)
	return svc
}

func fullDependencies() exposure.Dependencies {
	logger := zerolog.Nop()
	return exposure.Dependencies{
		Weather:      weather.NewService(weather.ServiceConfig{Seed: 7, Logger: logger}),
		Forecaster:   forecast.NewService(nil, nil, logger),
		Insights:     insight.NewService(nil, logger),
		Capabilities: capabilities{horizon: 5},
	}
}

func TestService_Analyze_FullPipeline(t *testing.T) {
	svc := newService(t, fullDependencies())

	report := svc.Analyze(context.Background(), exposure.Request{
		Region: "delhi",
		Start:  date(t, "2023-01-02"),
		End:    date(t, "2023-01-11"),
	})

	assert.Equal(t, "Delhi", report.Region)
	require.Len(t, report.Series, 10)
	assert.Equal(t, "2023-01-02", report.Series[0].Date.String())
	assert.Equal(t, 36.0, report.Series[0].NO2)
	assert.Equal(t, "Delhi", report.Series[0].Location)

	require.NotNil(t, report.Summary)
	assert.Contains(t, report.Summary.Trend, analysis.TrendKeyNO2)
	assert.NotEmpty(t, report.Summary.TrendExplanation)

	assert.Len(t, report.Summary.Forecasts, 5)
	assert.Equal(t, forecast.MethodLinear, report.Summary.ForecastMethod)
	assert.Equal(t, "2023-01-12", report.Summary.Forecasts[0].Date.String())

	require.NotNil(t, report.Summary.AnomalyAnalysis)
	assert.Equal(t, len(report.Summary.AnomalyAnalysis.Anomalies), report.Summary.AnomalyAnalysis.Count)

	require.NotNil(t, report.Summary.WeatherCorrelation)
	assert.Equal(t, 10, report.Summary.WeatherCorrelation.JoinedDays)

	assert.Contains(t, report.Summary.Insights, "Delhi")
	assert.Equal(t, insight.SourceRules, report.Summary.InsightSource)

	assert.NotEmpty(t, report.RiskZones)
	assert.Positive(t, report.AffectedPopulation())

	assert.Equal(t, map[string]analysis.Status{
		exposure.EnrichmentForecast:           analysis.StatusSuccess,
		exposure.EnrichmentInsight:            analysis.StatusSuccess,
		exposure.EnrichmentMultivariate:       analysis.StatusSuccess,
		exposure.EnrichmentWeatherCorrelation: analysis.StatusSuccess,
		exposure.EnrichmentTrendExplanation:   analysis.StatusSuccess,
	}, report.Enrichments)
}

func TestService_Analyze_UnknownRegionUsesDefault(t *testing.T) {
	svc := newService(t, fullDependencies())

	for _, name := range []string{"", "Atlantis"} {
		t.Run(name, func(t *testing.T) {
			report := svc.Analyze(context.Background(), exposure.Request{
				Region: name,
				Start:  date(t, "2023-01-02"),
				End:    date(t, "2023-01-11"),
			})
			assert.Equal(t, "Nagpur", report.Region)
		})
	}
}

func TestService_Analyze_NoData(t *testing.T) {
	deps := fullDependencies()
	deps.Pollutants = noPollutants{}
	svc := newService(t, deps)

	report := svc.Analyze(context.Background(), exposure.Request{
		Region: "Nagpur",
		Start:  date(t, "2023-01-02"),
		End:    date(t, "2023-01-11"),
	})

	assert.NotNil(t, report.Series)
	assert.Empty(t, report.Series)
	assert.Nil(t, report.Summary)
	assert.NotNil(t, report.RiskZones)
	for name, status := range report.Enrichments {
		assert.Equal(t, analysis.StatusEmpty, status, name)
	}
	assert.Len(t, report.Enrichments, 5)
}

func TestService_Analyze_CapabilitiesDisabled(t *testing.T) {
	deps := fullDependencies()
	deps.Capabilities = capabilities{
		disabled: map[string]bool{
			featureflags.FlagEnableMultivariateAnomalies: true,
			featureflags.FlagEnableWeatherCorrelation:    true,
		},
		horizon: 3,
	}
	svc := newService(t, deps)

	report := svc.Analyze(context.Background(), exposure.Request{
		Region: "London",
		Start:  date(t, "2023-03-01"),
		End:    date(t, "2023-03-31"),
	})

	require.NotNil(t, report.Summary)
	assert.Nil(t, report.Summary.AnomalyAnalysis)
	assert.Nil(t, report.Summary.WeatherCorrelation)
	assert.Len(t, report.Summary.Forecasts, 3)
	assert.Equal(t, analysis.StatusEmpty, report.Enrichments[exposure.EnrichmentMultivariate])
	assert.Equal(t, analysis.StatusEmpty, report.Enrichments[exposure.EnrichmentWeatherCorrelation])
	assert.Equal(t, analysis.StatusSuccess, report.Enrichments[exposure.EnrichmentForecast])
}

func TestService_Analyze_OptionalStagesMissing(t *testing.T) {
	svc := newService(t, exposure.Dependencies{})

	report := svc.Analyze(context.Background(), exposure.Request{
		Region: "Mumbai",
		Start:  date(t, "2023-01-02"),
		End:    date(t, "2023-01-11"),
	})

	require.NotNil(t, report.Summary)
	assert.Empty(t, report.Summary.Forecasts)
	assert.Empty(t, report.Summary.Insights)
	assert.Equal(t, analysis.StatusEmpty, report.Enrichments[exposure.EnrichmentForecast])
	assert.Equal(t, analysis.StatusEmpty, report.Enrichments[exposure.EnrichmentInsight])
	assert.Equal(t, analysis.StatusEmpty, report.Enrichments[exposure.EnrichmentWeatherCorrelation])
	assert.Equal(t, analysis.StatusSuccess, report.Enrichments[exposure.EnrichmentMultivariate])
}

func TestReport_JSONShape(t *testing.T) {
	svc := newService(t, fullDependencies())
	report := svc.Analyze(context.Background(), exposure.Request{
		Region: "Nagpur",
		Start:  date(t, "2023-01-02"),
		End:    date(t, "2023-01-11"),
	})

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Nagpur", decoded["region"])
	assert.Equal(t, "2023-01-02", decoded["start_date"])
	assert.Contains(t, decoded, "pollutionLevels")
	assert.Contains(t, decoded, "riskZones")
	assert.Contains(t, decoded, "enrichments")

	summary, ok := decoded["summary"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"avg_no2", "max_pm25", "trend", "forecasts", "insights", "weather_correlation", "trend_explanation"} {
		assert.Contains(t, summary, key)
	}
}

func TestReport_HighRiskZones(t *testing.T) {
	report := &exposure.Report{RiskZones: []riskzone.Zone{
		{RiskLevel: riskzone.LevelHigh, EstimatedAffectedPopulation: 100},
		{RiskLevel: riskzone.LevelLow, EstimatedAffectedPopulation: 50},
		{RiskLevel: riskzone.LevelHigh, EstimatedAffectedPopulation: 25},
	}}

	assert.Equal(t, 2, report.HighRiskZones())
	assert.Equal(t, 175, report.AffectedPopulation())
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr error
	}{
		{name: "valid", start: "2023-01-01", end: "2023-12-31"},
		{name: "single day", start: "2023-05-05", end: "2023-05-05"},
		{name: "leap year maximum", start: "2024-01-01", end: "2025-01-01"},
		{name: "bad start", start: "01/01/2023", end: "2023-12-31", wantErr: exposure.ErrInvalidDate},
		{name: "bad end", start: "2023-01-01", end: "2023-13-01", wantErr: exposure.ErrInvalidDate},
		{name: "end before start", start: "2023-02-01", end: "2023-01-31", wantErr: exposure.ErrInvalidRange},
		{name: "too long", start: "2023-01-01", end: "2024-01-03", wantErr: exposure.ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := exposure.ParseRange(tt.start, tt.end)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start.String())
			assert.Equal(t, tt.end, end.String())
		})
	}
}
