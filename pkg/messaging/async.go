package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrQueueFull = errors.New("event queue is full")
var ErrPublisherClosed = errors.New("event publisher is closed")

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// AsyncPublisher hands events to a bounded queue drained by background workers.
// Publish never blocks: when the queue is full the event is dropped and logged.
// Delivery is attempted once; failures are logged and not retried.
type AsyncPublisher struct {
	next         Publisher
	queue        chan queuedEvent
	workers      int
	drainTimeout time.Duration
	logger       *slog.Logger

	// mu orders enqueues before close so drain sees every accepted event.
	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, buffer, workers int, drainTimeout time.Duration, logger *slog.Logger) *AsyncPublisher {
	return &AsyncPublisher{
		next:         next,
		queue:        make(chan queuedEvent, buffer),
		workers:      workers,
		drainTimeout: drainTimeout,
		logger:       logger.With("component", "events"),
	}
}

// Publish enqueues the event. The context keeps its values but loses its cancellation,
// so a finished request does not abort delivery.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.WarnContext(ctx, "Event dropped, publisher closed", "subject", event.Subject())
		return ErrPublisherClosed
	}
	select {
	case p.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		p.logger.WarnContext(ctx, "Event dropped, queue full", "subject", event.Subject())
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled. Events still queued at
// that point are delivered until the queue is empty or the drain timeout expires.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for range p.workers {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case qe := <-p.queue:
					p.deliver(qe)
				}
			}
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.drain()
	return nil
}

func (p *AsyncPublisher) drain() {
	deadline := time.NewTimer(p.drainTimeout)
	defer deadline.Stop()
	for {
		select {
		case qe := <-p.queue:
			p.deliver(qe)
		case <-deadline.C:
			p.logger.Warn("Drain timeout expired, events lost", "remaining", len(p.queue))
			return
		default:
			return
		}
	}
}

func (p *AsyncPublisher) deliver(qe queuedEvent) {
	if err := p.next.Publish(qe.ctx, qe.event); err != nil {
		p.logger.ErrorContext(qe.ctx, "Failed to publish event", "subject", qe.event.Subject(), "error", err)
		return
	}
	p.logger.DebugContext(qe.ctx, "Event delivered", "subject", qe.event.Subject())
}
