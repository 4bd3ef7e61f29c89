package repository

import (
	"context"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	pkgkafka "SignalCast/pkg/kafka"
)

// Producer is the part of pkg/kafka.Producer the publisher needs.
type Producer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// PredictionEvent is the wire shape of prediction and resolution events.
type PredictionEvent struct {
	Event      string             `json:"event"`
	Prediction *models.Prediction `json:"prediction"`
}

const (
	EventPredicted = "prediction.created"
	EventResolved  = "prediction.resolved"
)

// KafkaPredictionPublisher implements PredictionPublisher for Kafka, keyed
// by symbol.
type KafkaPredictionPublisher struct {
	producer         Producer
	predictionsTopic string
	resolutionsTopic string
}

func NewKafkaPredictionPublisher(producer Producer, predictionsTopic, resolutionsTopic string) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{
		producer:         producer,
		predictionsTopic: predictionsTopic,
		resolutionsTopic: resolutionsTopic,
	}
}

func (p *KafkaPredictionPublisher) PublishPrediction(ctx context.Context, pr *models.Prediction) error {
	return p.publish(ctx, p.predictionsTopic, EventPredicted, pr)
}

func (p *KafkaPredictionPublisher) PublishResolution(ctx context.Context, pr *models.Prediction) error {
	return p.publish(ctx, p.resolutionsTopic, EventResolved, pr)
}

func (p *KafkaPredictionPublisher) publish(ctx context.Context, topic, event string, pr *models.Prediction) error {
	return p.producer.PublishBatch(ctx, topic, []pkgkafka.Message{{
		Key:     []byte(pr.Symbol),
		Value:   PredictionEvent{Event: event, Prediction: pr},
		Headers: map[string]string{"trace_id": pr.ID.String(), "event": event},
	}})
}

func (p *KafkaPredictionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPrediction(context.Context, *models.Prediction) error { return nil }
func (NopPublisher) PublishResolution(context.Context, *models.Prediction) error { return nil }
func (NopPublisher) Close() error                                                { return nil }

var (
	_ domrepo.PredictionPublisher = (*KafkaPredictionPublisher)(nil)
	_ domrepo.PredictionPublisher = NopPublisher{}
)
