// Package api provides the HTTP API of the exposure service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/api/handler"
	"github.com/airexposure/airexposure/internal/api/middleware"
	"github.com/airexposure/airexposure/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// DefaultRegion is used when a request names no region.
	DefaultRegion string

	Exposure   handler.Analyzer
	Boundaries handler.BoundaryLookup
	Flags      handler.FlagStore
	Registry   *resilience.Registry
	Readiness  map[string]handler.Check

	// TokenValidator guards the admin and status endpoints. Nil closes them.
	TokenValidator middleware.TokenValidator

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airexposure-api"
	}
	defaultRegion := cfg.DefaultRegion
	if defaultRegion == "" {
		defaultRegion = "Nagpur"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Checks:    cfg.Readiness,
		Registry:  cfg.Registry,
		Flags:     cfg.Flags,
	})

	authMiddleware := middleware.Auth(cfg.TokenValidator)
	analysisRateLimit := middleware.RateLimitByIP(middleware.AnalysisRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Exposure != nil {
			exposureHandler := handler.NewExposureHandler(cfg.Exposure)
			r.With(analysisRateLimit).Get("/pollution-data", exposureHandler.GetPollutionData)
		}

		if cfg.Boundaries != nil {
			boundaryHandler := handler.NewBoundaryHandler(cfg.Boundaries, defaultRegion)
			r.With(standardRateLimit).Get("/region-boundary", boundaryHandler.GetRegionBoundary)
		}

		// Admin endpoints (authenticated)
		if cfg.Flags != nil {
			featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.Flags, cfg.Logger)
			r.Route("/admin", func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(middleware.RateLimitByOperator(middleware.AdminRateLimit))
				r.Use(middleware.RequireJSON)

				r.Route("/feature-flags", func(r chi.Router) {
					r.Get("/", featureFlagsHandler.ListFeatureFlags)
					r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
					r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
				})
			})
		}
	})

	return r
}
