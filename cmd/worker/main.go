// Package main provides the entrypoint for the regional analysis worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/api/response"
	"github.com/airexposure/airexposure/internal/bootstrap"
	"github.com/airexposure/airexposure/internal/config"
	"github.com/airexposure/airexposure/internal/telemetry"
	"github.com/airexposure/airexposure/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airexposure-worker"

	cfg := config.Load()
	log := telemetry.NewLogger(os.Stdout, serviceName, Version, cfg.App.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting air exposure worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	pipeline, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer pipeline.Close()

	jobConfig := worker.AnalysisConfig{
		Regions:      cfg.Worker.Regions,
		Concurrency:  cfg.Worker.Concurrency,
		Timeout:      cfg.Worker.JobTimeout,
		LookbackDays: cfg.Worker.LookbackDays,
	}

	// Worker also exposes a health endpoint for Cloud Run.
	server := healthServer(cfg.App.Port)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.Worker.ProjectID != "" {
		go runPubSub(ctx, cfg.Worker, jobConfig, pipeline, log)
	} else {
		log.Warn().Dur("interval", cfg.Worker.Interval).Msg("no Pub/Sub project configured, running on a local schedule")
		job := worker.NewAnalysisJob(worker.AnalysisJobConfig{
			Config:   jobConfig,
			Logger:   log,
			Analyzer: pipeline.Exposure,
		})
		go runScheduled(ctx, job, cfg.Worker.Interval, log)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func healthServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": Version,
		})
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func runPubSub(ctx context.Context, cfg config.WorkerConfig, jobConfig worker.AnalysisConfig, pipeline *bootstrap.Pipeline, log zerolog.Logger) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub client")
		return
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	var publisher worker.DigestPublisher
	if cfg.DigestTopicID != "" {
		p := worker.NewPubSubPublisher(client, cfg.DigestTopicID)
		defer p.Stop()
		publisher = p
	}

	job := worker.NewAnalysisJob(worker.AnalysisJobConfig{
		Config:    jobConfig,
		Logger:    log,
		Analyzer:  pipeline.Exposure,
		Publisher: publisher,
	})

	handler := worker.NewPubSubHandler(client, worker.PubSubConfig{
		SubscriptionName: cfg.SubscriptionID,
		Dispatcher:       worker.NewDispatcher(job, log),
		Logger:           log,
	})

	if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub handler stopped")
	}
	log.Info().Interface("metrics", job.MetricsSnapshot()).Msg("pubsub handler exited")
}

func runScheduled(ctx context.Context, job *worker.AnalysisJob, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := job.Run(ctx, worker.RunOptions{}); err != nil {
			log.Error().Err(err).Msg("scheduled analysis failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
