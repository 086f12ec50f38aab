package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-escrow/internal/config"
)

// KafkaRelay forwards every dispatched domain event to a Kafka topic for
// downstream consumers (notification and reporting services live outside
// this core). Messages are keyed by ticket id so per-ticket ordering is
// preserved within a partition.
type KafkaRelay struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaRelay builds the relay. Returns nil when no brokers are
// configured; the caller simply skips registration.
func NewKafkaRelay(cfg config.KafkaConfig, logger *zap.Logger) *KafkaRelay {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaRelay{writer: writer, logger: logger}
}

// Register subscribes the relay to every event on the dispatcher.
func (r *KafkaRelay) Register(dispatcher Dispatcher) {
	if r == nil || dispatcher == nil {
		return
	}
	dispatcher.SubscribeAll(r.forward)
}

func (r *KafkaRelay) forward(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshal event for kafka", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TicketID),
		Value: value,
	})
	if err != nil {
		r.logger.Warn("forward event to kafka",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (r *KafkaRelay) Close() error {
	if r == nil {
		return nil
	}
	return r.writer.Close()
}
