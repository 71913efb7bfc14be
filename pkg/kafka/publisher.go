// Package kafka publishes domain events to Kafka topics named after the event subject.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/inventory/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer used to publish.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a writer without a fixed topic; each message names its own.
func NewWriter(brokers []string, writeTimeout time.Duration) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           writeTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

type KafkaPublisher struct {
	w MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Publish writes the event to the topic named by its subject. Keyed events are
// partitioned by key so events of one sale stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	msg := kafka.Message{
		Topic: event.Subject(),
		Value: data,
	}
	if keyed, ok := event.(messaging.Keyed); ok {
		msg.Key = []byte(keyed.Key())
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", event.Subject(), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
