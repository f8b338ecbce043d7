package forecast

import (
	"context"
	"fmt"
	"strings"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/provider/resilience"
)

// seasonalMinHistory is the shortest series sent to the seasonal model.
const seasonalMinHistory = 5

// FlagChecker reports whether a capability flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// SeasonalConfig configures the remote seasonal model client.
type SeasonalConfig struct {
	// URL is the model endpoint. An empty URL makes the estimator
	// unavailable.
	URL string
}

// Seasonal calls a remote additive seasonal model (daily seasonality on,
// yearly off) once per pollutant.
type Seasonal struct {
	url    string
	client *resilience.Client
	flags  FlagChecker
}

// NewSeasonal creates the seasonal estimator. flags may be nil, in which
// case only the URL decides availability.
func NewSeasonal(cfg SeasonalConfig, client *resilience.Client, flags FlagChecker) *Seasonal {
	return &Seasonal{
		url:    strings.TrimRight(cfg.URL, "/"),
		client: client,
		flags:  flags,
	}
}

type point struct {
	DS string  `json:"ds"`
	Y  float64 `json:"y"`
}

type seasonalRequest struct {
	Series            []point `json:"series"`
	Periods           int     `json:"periods"`
	DailySeasonality  bool    `json:"daily_seasonality"`
	YearlySeasonality bool    `json:"yearly_seasonality"`
}

type seasonalResponse struct {
	Forecast []point `json:"forecast"`
}

// Name implements Estimator.
func (*Seasonal) Name() string { return MethodSeasonal }

// Available implements Estimator.
func (s *Seasonal) Available(ctx context.Context) bool {
	if s == nil || s.url == "" || s.client == nil {
		return false
	}
	if s.flags == nil {
		return true
	}
	return s.flags.IsEnabled(ctx, featureflags.FlagEnableAdvancedForecast)
}

// MinHistory implements Estimator.
func (*Seasonal) MinHistory() int { return seasonalMinHistory }

// Forecast implements Estimator.
func (s *Seasonal) Forecast(ctx context.Context, series []analysis.DailyRecord, horizon int) ([]Day, error) {
	if len(series) < seasonalMinHistory {
		return nil, ErrInsufficientHistory
	}
	no2, err := s.predict(ctx, series, analysis.NO2Values(series), horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast no2: %w", err)
	}
	pm25, err := s.predict(ctx, series, analysis.PM25Values(series), horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast pm25: %w", err)
	}
	return buildDays(series[len(series)-1].Date, no2, pm25), nil
}

func (s *Seasonal) predict(ctx context.Context, series []analysis.DailyRecord, values []float64, horizon int) ([]float64, error) {
	req := seasonalRequest{
		Series:            make([]point, len(series)),
		Periods:           horizon,
		DailySeasonality:  true,
		YearlySeasonality: false,
	}
	for i, r := range series {
		req.Series[i] = point{DS: r.Date.String(), Y: values[i]}
	}

	var resp seasonalResponse
	if err := s.client.PostJSON(ctx, s.url, nil, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Forecast) != horizon {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInvalidResponse, len(resp.Forecast), horizon)
	}

	out := make([]float64, horizon)
	for i, p := range resp.Forecast {
		out[i] = p.Y
	}
	return out, nil
}
