package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/exposure"
)

// Digest is the per-region summary published after each run. Pollutant
// fields are null when the region had no data.
type Digest struct {
	Region             string                     `json:"region"`
	StartDate          string                     `json:"start_date"`
	EndDate            string                     `json:"end_date"`
	Days               int                        `json:"days"`
	AvgNO2             *float64                   `json:"avg_no2"`
	MaxNO2             *float64                   `json:"max_no2"`
	AvgPM25            *float64                   `json:"avg_pm25"`
	MaxPM25            *float64                   `json:"max_pm25"`
	DaysExceedingNO2   int                        `json:"days_exceeding_who_no2"`
	DaysExceedingPM25  int                        `json:"days_exceeding_who_pm25"`
	HighRiskZones      int                        `json:"high_risk_zones"`
	AffectedPopulation int                        `json:"affected_population"`
	Enrichments        map[string]analysis.Status `json:"enrichments"`
	GeneratedAt        time.Time                  `json:"generated_at"`
}

// NewDigest condenses a report.
func NewDigest(report *exposure.Report, now time.Time) Digest {
	d := Digest{
		Region:             report.Region,
		StartDate:          report.Start.String(),
		EndDate:            report.End.String(),
		Days:               len(report.Series),
		HighRiskZones:      report.HighRiskZones(),
		AffectedPopulation: report.AffectedPopulation(),
		Enrichments:        report.Enrichments,
		GeneratedAt:        now.UTC(),
	}
	if s := report.Summary; s != nil {
		d.AvgNO2 = ptr(s.AvgNO2)
		d.MaxNO2 = ptr(s.MaxNO2)
		d.AvgPM25 = ptr(s.AvgPM25)
		d.MaxPM25 = ptr(s.MaxPM25)
		d.DaysExceedingNO2 = s.DaysExceedingWHONO2
		d.DaysExceedingPM25 = s.DaysExceedingWHOPM
	}
	return d
}

func ptr(v float64) *float64 { return &v }

// DigestPublisher delivers digests.
type DigestPublisher interface {
	Publish(ctx context.Context, d Digest) error
}

// PubSubPublisher publishes digests as JSON messages to a Pub/Sub topic.
type PubSubPublisher struct {
	publisher *pubsub.Publisher
	topicID   string
}

// NewPubSubPublisher creates a publisher for topicID.
func NewPubSubPublisher(client *pubsub.Client, topicID string) *PubSubPublisher {
	return &PubSubPublisher{
		publisher: client.Publisher(topicID),
		topicID:   topicID,
	}
}

// Publish sends d and waits for the server acknowledgement.
func (p *PubSubPublisher) Publish(ctx context.Context, d Digest) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding digest: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   "exposure_digest",
			"region": d.Region,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing digest to %s: %w", p.topicID, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.publisher.Stop()
}
