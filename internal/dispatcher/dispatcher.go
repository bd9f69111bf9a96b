// Package dispatcher enqueues notification events without ever failing the
// business operation that produced them.
package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/DIEGHOST64/Prisma/internal/notification"
)

// DefaultEnqueueTimeout bounds a single queue send.
const DefaultEnqueueTimeout = 5 * time.Second

// QueueSender is the producing half of a queue client.
type QueueSender interface {
	Send(ctx context.Context, body []byte, attrs map[string]string) (string, error)
}

// Stats counts enqueue outcomes since start.
type Stats struct {
	Enqueued int64 `json:"enqueued"`
	Failed   int64 `json:"failed"`
}

// Dispatcher publishes notification events to the queue.
type Dispatcher struct {
	queue   QueueSender
	timeout time.Duration
	log     *zerolog.Logger

	enqueued atomic.Int64
	failed   atomic.Int64
}

// NewDispatcher creates a Dispatcher. A non-positive timeout uses DefaultEnqueueTimeout.
func NewDispatcher(queue QueueSender, timeout time.Duration, log *zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultEnqueueTimeout
	}
	return &Dispatcher{
		queue:   queue,
		timeout: timeout,
		log:     log,
	}
}

// Enqueue sends ev once. Errors are logged and swallowed; the send is not
// retried and is not cancelled when the caller's request ends.
func (d *Dispatcher) Enqueue(ctx context.Context, ev notification.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	body, err := ev.Encode()
	if err != nil {
		d.failed.Add(1)
		d.log.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Str("idempotency_key", ev.IdempotencyKey).
			Msg("failed to encode notification")
		return
	}

	messageID, err := d.queue.Send(ctx, body, ev.Attributes())
	if err != nil {
		d.failed.Add(1)
		d.log.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Str("recipient", ev.To).
			Str("idempotency_key", ev.IdempotencyKey).
			Msg("failed to enqueue notification")
		return
	}

	d.enqueued.Add(1)
	d.log.Info().
		Str("message_id", messageID).
		Str("kind", string(ev.Kind)).
		Str("recipient", ev.To).
		Str("idempotency_key", ev.IdempotencyKey).
		Msg("notification enqueued")
}

// Stats returns enqueue counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued: d.enqueued.Load(),
		Failed:   d.failed.Load(),
	}
}
