// Package kafka forwards domain events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes events to the configured topic. Without brokers every method is a no-op.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

// NewProducer builds a producer from configuration.
func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		logger.Info("kafka brokers not configured; event sink disabled")
		return &Producer{logger: logger}
	}
	return &Producer{
		logger: logger,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Enabled reports whether events are forwarded.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// Register forwards every event published on dispatcher.
func (p *Producer) Register(dispatcher events.Dispatcher) {
	if !p.Enabled() || dispatcher == nil {
		return
	}
	events.SubscribeAll(dispatcher, p.Handle)
}

// Handle writes one event. Failures are logged and returned to the dispatcher,
// which never propagates them to the publisher.
func (p *Producer) Handle(ctx context.Context, event events.Event) error {
	if p.writer == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("kafka: marshal event", zap.String("event_type", string(event.Type)), zap.Error(err))
		return err
	}

	// Publishing is fire-and-forget; a cancelled request must not drop the write.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.Timestamp,
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Warn("kafka: write event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
