package fanout

import (
	"context"
	"encoding/json"
	"log"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"sonar/internal/domain"
)

// KafkaConfig configures the Kafka trade publisher.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TRADE_TOPIC" default:"trades"`
	// PublishTimeout bounds a single produce attempt.
	PublishTimeout time.Duration `envconfig:"KAFKA_PUBLISH_TIMEOUT" default:"2s"`
}

// KafkaPublisher publishes committed trades to a Kafka topic, keyed by
// pair so per-pair ordering is preserved within a partition. Failures are
// logged and never retried; the broker is a liveness optimization.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
	logger  *log.Logger

	// onPublish is invoked for every accepted produce. Optional.
	onPublish func()
}

// NewKafkaPublisher creates a publisher for the configured topic.
func NewKafkaPublisher(cfg KafkaConfig, logger *log.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireNone,
		Async:        true,
	}
	return &KafkaPublisher{writer: w, timeout: cfg.PublishTimeout, logger: logger}
}

// Compile-time interface check.
var _ Publisher = (*KafkaPublisher)(nil)

// OnPublish registers a callback for accepted produces. Must be set
// before the publisher is shared.
func (p *KafkaPublisher) OnPublish(fn func()) { p.onPublish = fn }

// Publish implements Publisher. Best-effort: serialization or produce
// errors drop the message.
func (p *KafkaPublisher) Publish(e *domain.SwapEvent) {
	payload, err := json.Marshal(domain.TradeFromEvent(e))
	if err != nil {
		p.logger.Printf("fanout: marshal trade %s: %v", e.Signature, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Pair),
		Value: payload,
		Time:  time.Unix(e.Timestamp, 0).UTC(),
	})
	if err != nil {
		p.logger.Printf("fanout: publish trade %s: %v", e.Signature, err)
		return
	}
	if p.onPublish != nil {
		p.onPublish()
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
