package repository

import (
	"context"
	"fmt"

	"FactorLens/internal/domain/models"
	"FactorLens/internal/domain/repository"
	pkgkafka "FactorLens/pkg/kafka"
)

// betaMessage is the per-asset payload: the latest beta row of one run.
type betaMessage struct {
	RunID   string             `json:"run_id"`
	Version int64              `json:"version"`
	Asset   string             `json:"asset"`
	Region  string             `json:"region,omitempty"`
	Date    string             `json:"date"`
	Betas   map[string]float64 `json:"betas"`
}

// KafkaPublisher implements Publisher for Kafka. Latest betas go to the betas
// topic keyed by asset; the run summary goes to the runs topic keyed by run id.
type KafkaPublisher struct {
	producer   *pkgkafka.Producer
	betasTopic string
	runsTopic  string
	region     func(string) models.Region
}

// NewKafkaPublisher creates Kafka publisher. region may be nil.
func NewKafkaPublisher(producer *pkgkafka.Producer, betasTopic, runsTopic string, region func(string) models.Region) repository.Publisher {
	return &KafkaPublisher{producer: producer, betasTopic: betasTopic, runsTopic: runsTopic, region: region}
}

func (p *KafkaPublisher) PublishRun(ctx context.Context, r *models.RunResult) error {
	if r == nil {
		return nil
	}
	msgs := BetaMessages(r, p.region)
	if err := p.producer.PublishBatch(ctx, p.betasTopic, msgs); err != nil {
		return fmt.Errorf("publish betas: %w", err)
	}
	if err := p.producer.Publish(ctx, p.runsTopic, []byte(r.ID), r.Summary()); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	return nil
}

// BetaMessages builds one message per fitted asset in sorted asset order.
func BetaMessages(r *models.RunResult, region func(string) models.Region) []pkgkafka.Message {
	assets := r.Assets()
	msgs := make([]pkgkafka.Message, 0, len(assets))
	for _, a := range assets {
		series := r.Betas[a]
		m := betaMessage{
			RunID:   r.ID,
			Version: r.Version,
			Asset:   a,
			Date:    series.LatestDate().Format("2006-01-02"),
			Betas:   series.Latest(),
		}
		if region != nil {
			m.Region = string(region(a))
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(a), Value: m, TraceID: r.ID})
	}
	return msgs
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
