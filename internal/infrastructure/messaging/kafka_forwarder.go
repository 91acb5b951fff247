// Package messaging forwards domain events to Kafka.
package messaging

import (
	"context"
	"fmt"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/erp/inventory/internal/domain/shared"
	"github.com/erp/inventory/internal/infrastructure/config"
	"github.com/erp/inventory/internal/infrastructure/event"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Producer writes one message at a time so each write gets its own span
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// NewProducer creates a traced Kafka writer for the configured topic
func NewProducer(cfg config.KafkaConfig, clientID string, tp trace.TracerProvider, logger *zap.Logger) (Producer, error) {
	base := newBaseWriter(cfg, logger)

	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(cfg.Topic),
			attribute.String("messaging.kafka.client_id", clientID),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka writer: %w", err)
	}
	return writer, nil
}

// newBaseWriter builds an async writer: WriteMessage only enqueues, and
// delivery failures surface through Completion.
func newBaseWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	logger = logger.Named("kafka_writer")
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("kafka delivery failed",
					zap.String("topic", cfg.Topic),
					zap.Int("messages", len(messages)),
					zap.Error(err),
				)
				return
			}
			logger.Debug("kafka batch delivered", zap.Int("messages", len(messages)))
		},
	}
}

// EventForwarder is an event-bus handler that publishes every event it
// receives to Kafka. Messages are keyed by aggregate id so each stock's
// events stay ordered within one partition.
type EventForwarder struct {
	producer   Producer
	serializer *event.EventSerializer
	logger     *zap.Logger
}

// NewEventForwarder creates a forwarder
func NewEventForwarder(producer Producer, serializer *event.EventSerializer, logger *zap.Logger) *EventForwarder {
	return &EventForwarder{
		producer:   producer,
		serializer: serializer,
		logger:     logger.Named("kafka_forwarder"),
	}
}

// EventTypes returns nil: the forwarder takes every event
func (f *EventForwarder) EventTypes() []string {
	return nil
}

// Handle serializes one event and enqueues it on the producer
func (f *EventForwarder) Handle(ctx context.Context, e shared.DomainEvent) error {
	value, err := f.serializer.Serialize(e)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(e.AggregateID().String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType())},
			{Key: "event_id", Value: []byte(e.EventID().String())},
		},
	}
	if err := f.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to forward %s %s: %w", e.EventType(), e.EventID(), err)
	}

	f.logger.Debug("event enqueued",
		zap.String("event_type", e.EventType()),
		zap.String("aggregate_id", e.AggregateID().String()),
	)
	return nil
}

// Close flushes queued messages and closes the producer
func (f *EventForwarder) Close() error {
	return f.producer.Close()
}

var _ shared.EventHandler = (*EventForwarder)(nil)
