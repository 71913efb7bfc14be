// Package messaging defines domain events and the publishers that deliver them to a broker.
package messaging

import (
	"context"
	"log/slog"
)

const (
	SalesCreatedSubject = "sales.created"
	SalesUpdatedSubject = "sales.updated"
	SalesDeletedSubject = "sales.deleted"

	// SalesSubjects matches every sale subject.
	SalesSubjects = "sales.>"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

// Keyed is implemented by events that carry a partitioning key.
type Keyed interface {
	Key() string
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	data, err := event.Payload()
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "Event published", "subject", event.Subject(), "payload", string(data))
	return nil
}
