package weather

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/region"
)

// CurrentProvider fetches live conditions for a coordinate.
type CurrentProvider interface {
	Current(ctx context.Context, lat, lon float64) (*Observation, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Current overrides the last synthetic day with live conditions
	// (optional).
	Current CurrentProvider

	// Seed makes the synthetic days reproducible.
	Seed int64

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long live conditions stay fresh.
	CacheTTL time.Duration

	// CacheGridSize is the cell size in degrees; points in one cell share
	// a cached observation.
	CacheGridSize float64

	// StaleIfErrorTTL is how long an expired observation may still be
	// served when the provider fails.
	StaleIfErrorTTL time.Duration
}

// Service supplies daily weather for a region: synthetic days drawn from the
// region's climate, with the last day replaced by live conditions when a
// provider is configured.
type Service struct {
	current CurrentProvider
	seed    int64
	logger  zerolog.Logger
	live    *liveCache
}

// NewService creates a weather service. Zero cache settings take their
// defaults: a 10 minute TTL, 0.1 degree cells and one hour of stale reads.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		current: cfg.Current,
		seed:    cfg.Seed,
		logger:  cfg.Logger.With().Str("component", "weather").Logger(),
		live:    newLiveCache(cfg.CacheTTL, cfg.StaleIfErrorTTL, cfg.CacheGridSize),
	}
}

// Fetch returns one Day per calendar date from start to end inclusive. It
// never fails: live-condition errors only skip the override.
func (s *Service) Fetch(ctx context.Context, r region.Region, start, end analysis.Date) []Day {
	if end.Before(start) {
		return []Day{}
	}

	zone := r.Climate
	if zone == "" {
		zone = ClimateForLatitude(r.Latitude)
	}
	table := tableFor(zone)
	rng := rand.New(rand.NewSource(s.seedFor(r.Name, start)))

	var days []Day
	for d := start; !end.Before(d); d = d.AddDays(1) {
		days = append(days, synthesize(rng, table[d.Time().Month()-1], d, r))
	}

	if s.current == nil {
		return days
	}
	obs, err := s.GetCurrentWeather(ctx, r.Latitude, r.Longitude)
	if err != nil {
		s.logger.Warn().Err(err).Str("region", r.Name).Msg("live conditions unavailable, keeping synthetic day")
		return days
	}
	last := &days[len(days)-1]
	last.Temperature = obs.Temperature
	last.Humidity = obs.Humidity
	last.WindSpeed = obs.WindSpeedKMH()
	last.Pressure = obs.Pressure
	s.logger.Debug().
		Str("region", r.Name).
		Str("condition", string(obs.Condition)).
		Bool("obscured", obs.Condition.Obscured()).
		Msg("applied live conditions to last day")
	return days
}

func synthesize(rng *rand.Rand, m monthClimate, date analysis.Date, r region.Region) Day {
	temperature := (m.minTemp+m.maxTemp)/2 + uniform(rng, -3, 3)
	humidity := uniform(rng, m.humidMin, m.humidMax)
	wind := uniform(rng, 2, 15)
	precipitation := 0.0
	if rng.Float64() < m.rainProb {
		precipitation = uniform(rng, 0.5, 25)
	}
	pressure := uniform(rng, 995, 1025)

	return Day{
		Date:          date,
		Temperature:   round1(temperature),
		Humidity:      round1(humidity),
		WindSpeed:     round1(wind),
		Precipitation: round1(precipitation),
		Pressure:      round1(pressure),
		Location:      r.Name,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
	}
}

func (s *Service) seedFor(name string, start analysis.Date) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return s.seed ^ int64(h.Sum64()) ^ start.Time().Unix()
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
