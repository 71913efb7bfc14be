package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/abgdnv/inventory/pkg/messaging"
	"github.com/abgdnv/inventory/pkg/messaging/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	// given
	w := &fakeWriter{}
	publisher := NewKafkaPublisher(w)
	event := events.SaleDeletedEvent{SaleEvent: events.SaleEvent{
		SaleID: 31,
		Items:  []events.SaleItem{{ProductID: 4, Quantity: 3}},
	}}

	// when
	err := publisher.Publish(context.Background(), event)

	// then
	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, messaging.SalesDeletedSubject, msg.Topic)
	assert.Equal(t, "31", string(msg.Key))

	var decoded events.SaleEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, int64(31), decoded.SaleID)
	assert.Equal(t, []events.SaleItem{{ProductID: 4, Quantity: 3}}, decoded.Items)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	// given
	w := &fakeWriter{err: errors.New("leader not available")}
	publisher := NewKafkaPublisher(w)

	// when
	err := publisher.Publish(context.Background(), events.SaleCreatedEvent{})

	// then
	assert.ErrorContains(t, err, "failed to write message to "+messaging.SalesCreatedSubject)
}

func TestKafkaPublisher_Close(t *testing.T) {
	// given
	w := &fakeWriter{}

	// when
	require.NoError(t, NewKafkaPublisher(w).Close())

	// then
	assert.True(t, w.closed)
}
