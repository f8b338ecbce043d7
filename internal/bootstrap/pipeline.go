// Package bootstrap assembles the exposure pipeline from configuration. Both
// the API server and the worker build their dependencies here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/config"
	"github.com/airexposure/airexposure/internal/database"
	"github.com/airexposure/airexposure/internal/exposure"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/forecast"
	"github.com/airexposure/airexposure/internal/insight"
	"github.com/airexposure/airexposure/internal/insight/chatgpt"
	"github.com/airexposure/airexposure/internal/provider/resilience"
	"github.com/airexposure/airexposure/internal/region"
	"github.com/airexposure/airexposure/internal/riskzone"
	"github.com/airexposure/airexposure/internal/satellite"
	"github.com/airexposure/airexposure/internal/satellite/eonet"
	"github.com/airexposure/airexposure/internal/satellite/waqi"
	"github.com/airexposure/airexposure/internal/weather"
	"github.com/airexposure/airexposure/internal/weather/openweathermap"
)

// Pipeline holds the wired pipeline and the resources behind it.
type Pipeline struct {
	Exposure   *exposure.Service
	Catalog    *region.Catalog
	Boundaries *region.Boundaries
	Flags      *featureflags.Service
	Registry   *resilience.Registry

	// Checks are readiness probes for the optional backing stores.
	Checks map[string]func(ctx context.Context) error

	closers []func()
}

// Close releases database and cache connections.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// Build wires every stage. Suppliers without credentials are left out and
// their stage falls back to synthetic data.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Pipeline, error) {
	catalog, err := region.DefaultCatalog(cfg.Analysis.DefaultRegion)
	if err != nil {
		return nil, fmt.Errorf("loading region catalog: %w", err)
	}

	p := &Pipeline{
		Catalog:  catalog,
		Registry: resilience.NewRegistry(),
		Checks:   make(map[string]func(ctx context.Context) error),
	}

	flags, err := p.buildFlags(ctx, cfg.Database, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Flags = flags

	cache := p.buildCache(ctx, cfg.Redis, logger)
	s := cfg.Suppliers

	// Satellite: EONET events and WAQI PM2.5, both optional.
	var events satellite.EventSource
	eonetClient := eonet.NewClient(eonet.ClientConfig{
		BaseURL:      s.EONETBaseURL,
		LookbackDays: s.EONETLookbackDays,
		HTTPClient:   p.supplierClient("eonet", s.Timeout),
		Logger:       logger,
	})
	events = eonetClient
	if cache != nil {
		events = satellite.NewCachedEvents(eonetClient, cache, s.CacheTTL, logger)
	}

	var pm25 satellite.PM25Source
	if s.WAQIToken != "" {
		waqiClient := waqi.NewClient(waqi.ClientConfig{
			Token:      s.WAQIToken,
			BaseURL:    s.WAQIBaseURL,
			HTTPClient: p.supplierClient("waqi", s.Timeout),
			Logger:     logger,
		})
		pm25 = waqiClient
		if cache != nil {
			pm25 = satellite.NewCachedPM25(waqiClient, cache, s.CacheTTL, logger)
		}
	} else {
		logger.Warn().Msg("WAQI token not configured, PM2.5 uses the default base")
	}

	satCfg := satellite.DefaultConfig()
	if cfg.Analysis.SyntheticDays > 0 {
		satCfg.SyntheticDays = cfg.Analysis.SyntheticDays
	}
	if cfg.Analysis.DefaultPM25 > 0 {
		satCfg.DefaultPM25 = cfg.Analysis.DefaultPM25
	}
	pollutants := satellite.NewService(satCfg, events, pm25, flags, logger)

	// Weather: synthetic days, last day from OpenWeatherMap when keyed.
	weatherCfg := weather.ServiceConfig{Seed: cfg.Analysis.Seed, Logger: logger}
	if s.OpenWeatherMapKey != "" {
		weatherCfg.Current = openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     s.OpenWeatherMapKey,
			BaseURL:    s.OpenWeatherMapBaseURL,
			HTTPClient: p.supplierClient("openweathermap", s.Timeout),
			Logger:     logger,
		})
	}

	seasonal := forecast.NewSeasonal(
		forecast.SeasonalConfig{URL: s.SeasonalForecastURL},
		p.supplierClient("seasonal_forecast", s.Timeout),
		flags,
	)

	var advanced insight.Generator
	if s.OpenAIKey != "" {
		completer, err := chatgpt.NewClient(chatgpt.Config{
			APIKey:     s.OpenAIKey,
			BaseURL:    s.OpenAIBaseURL,
			Model:      s.OpenAIModel,
			HTTPClient: p.supplierClient("chatgpt", s.Timeout),
		})
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating chatgpt client: %w", err)
		}
		advanced = insight.NewLLM(completer, flags)
	}

	var fetcher region.BoundaryFetcher
	if s.OverpassEnabled {
		fetcher = region.NewOverpassFetcher(s.OverpassEndpoint, s.Timeout)
	}
	p.Boundaries = region.NewBoundaries(catalog, fetcher, logger)

	svc, err := exposure.NewService(exposure.Config{
		Multivariate: analysis.MultivariateConfig{
			Contamination: cfg.Analysis.Contamination,
			Seed:          cfg.Analysis.Seed,
		},
	}, exposure.Dependencies{
		Regions:      catalog,
		Pollutants:   pollutants,
		Weather:      weather.NewService(weatherCfg),
		Forecaster:   forecast.NewService(seasonal, forecast.NewLinear(), logger),
		Insights:     insight.NewService(advanced, logger),
		Zones:        riskzone.NewClassifier(riskzone.DefaultConfig(), catalog, logger),
		Capabilities: flags,
	}, logger)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating exposure service: %w", err)
	}
	p.Exposure = svc

	logger.Info().
		Str("default_region", catalog.Default().Name).
		Int("suppliers", p.Registry.SupplierCount()).
		Bool("cache", cache != nil).
		Msg("pipeline initialized")

	return p, nil
}

func (p *Pipeline) supplierClient(name string, timeout time.Duration) *resilience.Client {
	return resilience.NewClient(resilience.SupplierClientConfig(name, timeout, p.Registry))
}

// buildFlags uses the Postgres flag store when the database is enabled and
// an in-memory store otherwise.
func (p *Pipeline) buildFlags(ctx context.Context, cfg database.Config, logger zerolog.Logger) (*featureflags.Service, error) {
	var repo featureflags.Repository = featureflags.NewInMemoryRepository()

	pool, err := database.Connect(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		logger.Info().Msg("database disabled, capability flags kept in memory")
	case err != nil:
		return nil, fmt.Errorf("connecting to database: %w", err)
	default:
		pgRepo := featureflags.NewPostgresRepository(pool)
		if err := pgRepo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating flag store: %w", err)
		}
		repo = pgRepo
		p.addPool(pool)
		logger.Info().
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Msg("database connected")
	}

	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     logger,
		CacheTTL:   time.Minute,
	}), nil
}

func (p *Pipeline) addPool(pool *pgxpool.Pool) {
	p.Checks["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	p.closers = append(p.closers, pool.Close)
}

// buildCache returns nil when Redis is disabled or unreachable.
func (p *Pipeline) buildCache(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) satellite.Cache {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, supplier cache disabled")
		_ = client.Close()
		return nil
	}

	p.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	p.closers = append(p.closers, func() { _ = client.Close() })
	logger.Info().Str("addr", cfg.Addr).Msg("redis supplier cache enabled")

	return satellite.NewRedisCache(client, "airexposure:")
}
