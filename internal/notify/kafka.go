// Package notify forwards resolved payments to downstream systems over Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/frahmantamala/pix-deposit/internal/core/events"
)

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Register subscribes the publisher to resolved payments.
func (p *KafkaPublisher) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePaymentResolved, p.HandlePaymentResolved)
}

// HandlePaymentResolved publishes the event keyed by payment id, so every
// message about one payment lands on the same partition.
func (p *KafkaPublisher) HandlePaymentResolved(ctx context.Context, event events.Event) error {
	resolved, ok := event.(*events.PaymentResolvedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	value, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(resolved.PaymentID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(resolved.EventType())},
			{Key: []byte("event_id"), Value: []byte(resolved.EventID())},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to publish resolved payment",
			"payment_id", resolved.PaymentID,
			"topic", p.topic,
			"error", err)
		return fmt.Errorf("failed to publish payment %s: %w", resolved.PaymentID, err)
	}

	p.logger.Info("resolved payment published",
		"payment_id", resolved.PaymentID,
		"status", resolved.Status,
		"topic", p.topic,
		"partition", partition,
		"offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
