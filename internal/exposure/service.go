package exposure

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/forecast"
	"github.com/airexposure/airexposure/internal/insight"
	"github.com/airexposure/airexposure/internal/region"
	"github.com/airexposure/airexposure/internal/riskzone"
	"github.com/airexposure/airexposure/internal/telemetry"
	"github.com/airexposure/airexposure/internal/weather"
)

const instrumentationName = "github.com/airexposure/airexposure/internal/exposure"

// PollutantSupplier provides raw NO2 and PM2.5 samples for a region.
type PollutantSupplier interface {
	FetchNO2(ctx context.Context, r region.Region, start, end analysis.Date) []analysis.Sample
	FetchPM25(ctx context.Context, r region.Region, start, end analysis.Date) []analysis.Sample
}

// WeatherSupplier provides daily weather for a region.
type WeatherSupplier interface {
	Fetch(ctx context.Context, r region.Region, start, end analysis.Date) []weather.Day
}

// Forecaster predicts days past the end of a series.
type Forecaster interface {
	Forecast(ctx context.Context, series []analysis.DailyRecord, horizon int) forecast.Result
}

// InsightWriter writes the narrative insight.
type InsightWriter interface {
	Generate(ctx context.Context, in insight.Input) insight.Result
}

// ZoneClassifier assigns risk zones to a series.
type ZoneClassifier interface {
	Classify(series []analysis.DailyRecord) []riskzone.Zone
}

// Capabilities exposes the runtime capability flags.
type Capabilities interface {
	IsEnabled(ctx context.Context, key string) bool
	ForecastHorizon(ctx context.Context) int
}

// Regions resolves a requested region name.
type Regions interface {
	Resolve(name string) region.Region
}

// Config holds pipeline parameters.
type Config struct {
	// Multivariate configures the joint anomaly detector.
	Multivariate analysis.MultivariateConfig
}

// Dependencies wires the pipeline stages. Weather, Forecaster, Insights and
// Capabilities may be nil; the corresponding enrichment is then reported
// as empty, or, for Capabilities, every stage is enabled.
type Dependencies struct {
	Regions      Regions
	Pollutants   PollutantSupplier
	Weather      WeatherSupplier
	Forecaster   Forecaster
	Insights     InsightWriter
	Zones        ZoneClassifier
	Capabilities Capabilities
}

// Service runs regional analyses.
type Service struct {
	cfg    Config
	deps   Dependencies
	logger zerolog.Logger
	tracer trace.Tracer

	reports     metric.Int64Counter
	enrichments metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewService creates the pipeline.
func NewService(cfg Config, deps Dependencies, logger zerolog.Logger) (*Service, error) {
	meter := telemetry.Meter(instrumentationName)

	reports, err := meter.Int64Counter(
		"exposure.reports.total",
		metric.WithDescription("Total number of regional analyses"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	enrichments, err := meter.Int64Counter(
		"exposure.enrichments.total",
		metric.WithDescription("Enrichment outcomes by name and status"),
		metric.WithUnit("{enrichment}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"exposure.report.duration",
		metric.WithDescription("Duration of regional analyses in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:         cfg,
		deps:        deps,
		logger:      logger.With().Str("component", "exposure").Logger(),
		tracer:      telemetry.Tracer(instrumentationName),
		reports:     reports,
		enrichments: enrichments,
		duration:    duration,
	}, nil
}

// Analyze runs the pipeline for req. It does not fail: missing data gives an
// empty series with a nil summary, and each enrichment reports its own
// status.
func (s *Service) Analyze(ctx context.Context, req Request) *Report {
	started := time.Now()
	r := s.deps.Regions.Resolve(req.Region)

	ctx, span := s.tracer.Start(ctx, "exposure.Analyze", trace.WithAttributes(
		attribute.String("region", r.Name),
		attribute.String("start_date", req.Start.String()),
		attribute.String("end_date", req.End.String()),
	))
	defer span.End()

	no2, pm25 := s.fetchPollutants(ctx, r, req.Start, req.End)
	result := analysis.Analyze(no2, pm25)

	report := &Report{
		Region:      r.Name,
		Start:       req.Start,
		End:         req.End,
		Series:      result.Series,
		Enrichments: make(map[string]analysis.Status),
	}

	if result.Summary != nil {
		report.Summary = &Summary{Summary: *result.Summary}
	}

	s.detectMultivariate(ctx, report)
	s.explainTrends(report)
	s.forecast(ctx, report)
	report.RiskZones = s.classify(ctx, report.Series)
	s.correlateWeather(ctx, r, report)
	s.writeInsight(ctx, r, report)

	for name, status := range report.Enrichments {
		s.enrichments.Add(ctx, 1, metric.WithAttributes(
			attribute.String("enrichment", name),
			attribute.String("status", string(status)),
		))
	}
	s.reports.Add(ctx, 1, metric.WithAttributes(attribute.Bool("empty", report.Summary == nil)))
	s.duration.Record(ctx, time.Since(started).Seconds())

	span.SetAttributes(
		attribute.Int("series.days", len(report.Series)),
		attribute.Int("risk_zones", len(report.RiskZones)),
	)

	s.logger.Debug().
		Str("region", r.Name).
		Str("start_date", req.Start.String()).
		Str("end_date", req.End.String()).
		Int("days", len(report.Series)).
		Dur("duration", time.Since(started)).
		Msg("analysis complete")

	return report
}

func (s *Service) fetchPollutants(ctx context.Context, r region.Region, start, end analysis.Date) ([]analysis.Sample, []analysis.Sample) {
	ctx, span := s.tracer.Start(ctx, "exposure.fetchPollutants")
	defer span.End()

	no2 := s.deps.Pollutants.FetchNO2(ctx, r, start, end)
	pm25 := s.deps.Pollutants.FetchPM25(ctx, r, start, end)
	span.SetAttributes(
		attribute.Int("samples.no2", len(no2)),
		attribute.Int("samples.pm25", len(pm25)),
	)
	return no2, pm25
}

func (s *Service) detectMultivariate(ctx context.Context, report *Report) {
	if report.Summary == nil || !s.enabled(ctx, featureflags.FlagEnableMultivariateAnomalies) {
		report.Enrichments[EnrichmentMultivariate] = analysis.StatusEmpty
		return
	}

	_, span := s.tracer.Start(ctx, "exposure.detectMultivariate")
	defer span.End()

	anomalies, status := analysis.DetectMultivariate(report.Series, s.cfg.Multivariate)
	report.Enrichments[EnrichmentMultivariate] = status
	if status != analysis.StatusSuccess {
		return
	}
	if anomalies == nil {
		anomalies = []analysis.MultivariateAnomaly{}
	}
	report.Summary.AnomalyAnalysis = &AnomalyAnalysis{Anomalies: anomalies, Count: len(anomalies)}
	span.SetAttributes(attribute.Int("anomalies", len(anomalies)))
}

func (s *Service) explainTrends(report *Report) {
	if report.Summary == nil {
		report.Enrichments[EnrichmentTrendExplanation] = analysis.StatusEmpty
		return
	}
	text := insight.ExplainTrends(report.Summary.Trend)
	if text == "" {
		report.Enrichments[EnrichmentTrendExplanation] = analysis.StatusEmpty
		return
	}
	report.Summary.TrendExplanation = text
	report.Enrichments[EnrichmentTrendExplanation] = analysis.StatusSuccess
}

func (s *Service) forecast(ctx context.Context, report *Report) {
	if report.Summary == nil || s.deps.Forecaster == nil {
		report.Enrichments[EnrichmentForecast] = analysis.StatusEmpty
		return
	}

	ctx, span := s.tracer.Start(ctx, "exposure.forecast")
	defer span.End()

	horizon := forecast.DefaultHorizon
	if s.deps.Capabilities != nil {
		horizon = s.deps.Capabilities.ForecastHorizon(ctx)
	}

	result := s.deps.Forecaster.Forecast(ctx, report.Series, horizon)
	report.Enrichments[EnrichmentForecast] = result.Status
	if len(result.Days) > 0 {
		report.Summary.Forecasts = result.Days
		report.Summary.ForecastMethod = result.Method
	}
	span.SetAttributes(
		attribute.String("method", result.Method),
		attribute.String("status", string(result.Status)),
	)
}

func (s *Service) classify(ctx context.Context, series []analysis.DailyRecord) []riskzone.Zone {
	_, span := s.tracer.Start(ctx, "exposure.classify")
	defer span.End()

	zones := s.deps.Zones.Classify(series)
	if zones == nil {
		zones = []riskzone.Zone{}
	}
	span.SetAttributes(attribute.Int("zones", len(zones)))
	return zones
}

func (s *Service) correlateWeather(ctx context.Context, r region.Region, report *Report) {
	if report.Summary == nil || s.deps.Weather == nil || !s.enabled(ctx, featureflags.FlagEnableWeatherCorrelation) {
		report.Enrichments[EnrichmentWeatherCorrelation] = analysis.StatusEmpty
		return
	}

	ctx, span := s.tracer.Start(ctx, "exposure.correlateWeather")
	defer span.End()

	days := s.deps.Weather.Fetch(ctx, r, report.Start, report.End)
	correlation := weather.Correlate(days, report.Series)
	if correlation == nil {
		report.Enrichments[EnrichmentWeatherCorrelation] = analysis.StatusEmpty
		return
	}
	report.Summary.WeatherCorrelation = correlation
	report.Enrichments[EnrichmentWeatherCorrelation] = analysis.StatusSuccess
	span.SetAttributes(attribute.Int("joined_days", correlation.JoinedDays))
}

func (s *Service) writeInsight(ctx context.Context, r region.Region, report *Report) {
	if s.deps.Insights == nil {
		report.Enrichments[EnrichmentInsight] = analysis.StatusEmpty
		return
	}

	ctx, span := s.tracer.Start(ctx, "exposure.writeInsight")
	defer span.End()

	in := insight.Input{Location: r.Name, Days: len(report.Series)}
	if report.Summary != nil {
		in.Summary = &report.Summary.Summary
	}

	result := s.deps.Insights.Generate(ctx, in)
	report.Enrichments[EnrichmentInsight] = result.Status
	if report.Summary != nil {
		report.Summary.Insights = result.Text
		report.Summary.InsightSource = result.Source
	}
	span.SetAttributes(attribute.String("source", result.Source))
}

func (s *Service) enabled(ctx context.Context, key string) bool {
	if s.deps.Capabilities == nil {
		return true
	}
	return s.deps.Capabilities.IsEnabled(ctx, key)
}
