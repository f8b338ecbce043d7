package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobTypeRegionalAnalysis = "regional_analysis"
	JobTypeHealthCheck      = "health_check"
)

var (
	// ErrUnknownJobType is returned for messages with an unrecognised job_type.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrMalformedMessage is returned for messages that can never succeed,
	// such as invalid JSON or dates.
	ErrMalformedMessage = errors.New("malformed message")
)

// JobMessage represents an analysis job message.
type JobMessage struct {
	JobType   string   `json:"job_type"`
	Regions   []string `json:"regions,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

// Dispatcher runs the job named by a message.
type Dispatcher struct {
	job    *AnalysisJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *AnalysisJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch decodes data and runs the job. Errors wrapping ErrUnknownJobType
// or ErrMalformedMessage should not be retried.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobTypeRegionalAnalysis:
		return d.regionalAnalysis(ctx, msg)
	case JobTypeHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) regionalAnalysis(ctx context.Context, msg JobMessage) error {
	result, err := d.job.Run(ctx, RunOptions{
		Regions:   msg.Regions,
		StartDate: msg.StartDate,
		EndDate:   msg.EndDate,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	for _, e := range result.Errors {
		d.logger.Warn().Str("region", e.Region).Str("error", e.Error).Msg("region analysis failed")
	}

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many analysis failures: %d/%d", result.Failed, result.TotalRegions)
	}
	return nil
}

// healthCheck analyses the first configured region over three days without
// publishing, verifying the pipeline end to end.
func (d *Dispatcher) healthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	now := d.job.now()
	end := now.AddDate(0, 0, -1).Format(time.DateOnly)
	start := now.AddDate(0, 0, -3).Format(time.DateOnly)

	result, err := d.job.Run(ctx, RunOptions{
		Regions:     d.job.config.Regions[:1],
		StartDate:   start,
		EndDate:     end,
		SkipPublish: true,
	})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", result.Failed)
	}
	if result.Empty > 0 {
		return errors.New("health check failed: no pollutant data")
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler on client. The caller owns
// the client.
func NewPubSubHandler(client *pubsub.Client, cfg PubSubConfig) *PubSubHandler {
	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Analyses are slow; keep few messages in flight and extend leases.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	if !Settle(err, logger) {
		msg.Nack()
		return
	}
	if err == nil {
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed")
	}
	msg.Ack()
}

// Settle logs the outcome of a dispatch and reports whether the message
// should be acknowledged. Unknown and malformed messages are acknowledged to
// prevent redelivery.
func Settle(err error, logger zerolog.Logger) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrUnknownJobType), errors.Is(err, ErrMalformedMessage):
		logger.Warn().Err(err).Msg("dropping message")
		return true
	default:
		logger.Error().Err(err).Msg("job failed")
		return false
	}
}
