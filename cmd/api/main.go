// Package main provides the entrypoint for the air exposure API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airexposure/airexposure/internal/api"
	"github.com/airexposure/airexposure/internal/api/handler"
	"github.com/airexposure/airexposure/internal/api/middleware"
	"github.com/airexposure/airexposure/internal/auth"
	"github.com/airexposure/airexposure/internal/bootstrap"
	"github.com/airexposure/airexposure/internal/config"
	"github.com/airexposure/airexposure/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airexposure-api"

	cfg := config.Load()
	log := telemetry.NewLogger(os.Stdout, serviceName, Version, cfg.App.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.App.Environment).
		Msg("starting air exposure API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	pipeline, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer pipeline.Close()

	// Without a signing key the admin and status endpoints stay closed.
	var validator middleware.TokenValidator
	if cfg.Auth.JWTSigningKey != "" {
		jwtService, err := auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.Auth.JWTSigningKey,
			Issuer:     cfg.Auth.JWTIssuer,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize JWT service")
		}
		validator = jwtService
	} else {
		log.Warn().Msg("JWT signing key not configured, operator endpoints disabled")
	}

	readiness := make(map[string]handler.Check, len(pipeline.Checks))
	for name, check := range pipeline.Checks {
		readiness[name] = check
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		DefaultRegion:  pipeline.Catalog.Default().Name,
		Exposure:       pipeline.Exposure,
		Boundaries:     pipeline.Boundaries,
		Flags:          pipeline.Flags,
		Registry:       pipeline.Registry,
		Readiness:      readiness,
		TokenValidator: validator,
		RequireTLS:     cfg.App.Environment == "production",
	})

	// Analyses can take several supplier round trips.
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
