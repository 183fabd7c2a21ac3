// Package kafka publishes inserted alerts to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hailwatch/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces one message per inserted alert.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the alert topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes the alert keyed by alert_id, so every event for one alert
// lands on the same partition.
func (p *Publisher) Publish(ctx context.Context, alert domain.Alert) error {
	msg, err := serializeToMessage(alert)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.AlertID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message.
func serializeToMessage(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.AlertID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(alert.Source)},
			{Key: "event_time", Value: []byte(alert.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
