package nats

import (
	"context"
	"fmt"

	"github.com/abgdnv/inventory/pkg/messaging"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamPublisher is the subset of jetstream.JetStream used to publish.
type JetStreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type NatsPublisher struct {
	js JetStreamPublisher
}

func NewNatsPublisher(js JetStreamPublisher) *NatsPublisher {
	return &NatsPublisher{js: js}
}

// Publish sends the event and waits for the stream acknowledgement.
func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	msg := nats.NewMsg(event.Subject())
	msg.Data = data
	if keyed, ok := event.(messaging.Keyed); ok {
		msg.Header.Set("Event-Key", keyed.Key())
	}
	_, err = p.js.PublishMsg(ctx, msg)
	return err
}
