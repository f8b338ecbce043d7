package satellite

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/region"
)

// Service supplies pollutant samples. Every live source is optional.
type Service struct {
	cfg    Config
	events EventSource
	pm25   PM25Source
	flags  FlagChecker
	logger zerolog.Logger
}

// NewService creates a pollutant supplier. events, pm25 and flags may be nil.
func NewService(cfg Config, events EventSource, pm25 PM25Source, flags FlagChecker, logger zerolog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.SyntheticDays <= 0 {
		cfg.SyntheticDays = defaults.SyntheticDays
	}
	if cfg.DefaultPM25 <= 0 {
		cfg.DefaultPM25 = defaults.DefaultPM25
	}
	if cfg.EventRadiusKM <= 0 {
		cfg.EventRadiusKM = defaults.EventRadiusKM
	}
	if cfg.EventWindowDays <= 0 {
		cfg.EventWindowDays = defaults.EventWindowDays
	}

	return &Service{
		cfg:    cfg,
		events: events,
		pm25:   pm25,
		flags:  flags,
		logger: logger.With().Str("component", "satellite").Logger(),
	}
}

// FetchNO2 returns the NO2 series of r starting at start. Days near a
// relevant natural event are raised and marked event-influenced.
func (s *Service) FetchNO2(ctx context.Context, r region.Region, start, end analysis.Date) []analysis.Sample {
	dates := seriesDates(start, end, s.cfg.SyntheticDays)
	events := s.recentEvents(ctx)

	samples := make([]analysis.Sample, len(dates))
	for i, d := range dates {
		value := baseNO2(d, i)
		influenced := false
		for _, e := range events {
			added, near := s.cfg.eventImpact(d, r, e)
			if near {
				value += added
				influenced = true
			}
		}
		samples[i] = sample(d, r)
		samples[i].NO2 = value
		samples[i].EventInfluenced = influenced
	}

	s.logger.Debug().
		Str("region", r.Name).
		Int("samples", len(samples)).
		Int("events", len(events)).
		Msg("generated no2 series")

	return samples
}

// FetchPM25 returns the PM2.5 series of r starting at start, anchored on the
// live reading when one is available.
func (s *Service) FetchPM25(ctx context.Context, r region.Region, start, end analysis.Date) []analysis.Sample {
	dates := seriesDates(start, end, s.cfg.SyntheticDays)
	base := s.basePM25(ctx, r)

	samples := make([]analysis.Sample, len(dates))
	for i, d := range dates {
		samples[i] = sample(d, r)
		samples[i].PM25 = pm25Level(d, i, base)
	}
	return samples
}

func (s *Service) recentEvents(ctx context.Context) []Event {
	if s.events == nil {
		return nil
	}
	if s.flags != nil && !s.flags.IsEnabled(ctx, featureflags.FlagEnableLiveEventFeed) {
		return nil
	}
	events, err := s.events.Events(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("event feed unavailable, using base pattern")
		return nil
	}
	return events
}

func (s *Service) basePM25(ctx context.Context, r region.Region) float64 {
	if s.pm25 == nil {
		return s.cfg.DefaultPM25
	}
	v, err := s.pm25.PM25(ctx, r)
	if err != nil || v <= 0 {
		s.logger.Warn().Err(err).Str("region", r.Name).Msg("live pm2.5 unavailable, using default base")
		return s.cfg.DefaultPM25
	}
	return v
}

func sample(d analysis.Date, r region.Region) analysis.Sample {
	return analysis.Sample{
		Timestamp: d.Time(),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Location:  r.Name,
	}
}
