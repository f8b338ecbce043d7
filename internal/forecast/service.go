package forecast

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/analysis"
)

// Service dispatches to the advanced estimator when it is available and
// falls back to the linear one.
type Service struct {
	advanced Estimator
	fallback Estimator
	logger   zerolog.Logger
}

// NewService creates a forecast service. advanced may be nil; fallback nil
// means Linear.
func NewService(advanced, fallback Estimator, logger zerolog.Logger) *Service {
	if fallback == nil {
		fallback = NewLinear()
	}
	return &Service{
		advanced: advanced,
		fallback: fallback,
		logger:   logger.With().Str("component", "forecast").Logger(),
	}
}

// Forecast predicts horizon days past the end of series. Series shorter than
// the fallback's minimum history give StatusEmpty. A failing advanced
// estimator degrades to the fallback with StatusDegraded.
func (s *Service) Forecast(ctx context.Context, series []analysis.DailyRecord, horizon int) Result {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if len(series) < s.fallback.MinHistory() {
		return Result{Status: analysis.StatusEmpty, Days: []Day{}}
	}

	status := analysis.StatusSuccess
	if s.advanced != nil && len(series) >= s.advanced.MinHistory() && s.advanced.Available(ctx) {
		days, err := s.advanced.Forecast(ctx, series, horizon)
		if err == nil {
			return Result{Status: analysis.StatusSuccess, Method: s.advanced.Name(), Days: days}
		}
		s.logger.Warn().Err(err).
			Str("estimator", s.advanced.Name()).
			Msg("advanced forecast failed, using fallback")
		status = analysis.StatusDegraded
	}

	days, err := s.fallback.Forecast(ctx, series, horizon)
	if err != nil {
		s.logger.Warn().Err(err).Str("estimator", s.fallback.Name()).Msg("fallback forecast failed")
		return Result{Status: analysis.StatusEmpty, Days: []Day{}}
	}
	return Result{Status: status, Method: s.fallback.Name(), Days: days}
}
