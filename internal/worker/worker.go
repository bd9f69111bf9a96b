// Package worker drains the notification queue: it receives events, renders
// them, sends the email and acknowledges only successful sends.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/DIEGHOST64/Prisma/internal/mail"
	"github.com/DIEGHOST64/Prisma/internal/notification"
	"github.com/DIEGHOST64/Prisma/internal/queue"
	"github.com/DIEGHOST64/Prisma/internal/render"
)

// ErrAlreadyDraining is returned by Run when another Run is active.
var ErrAlreadyDraining = errors.New("queue worker is already draining")

// Queue is the consuming half of a queue client.
type Queue interface {
	Receive(ctx context.Context, opts queue.ReceiveOptions) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	Stats(ctx context.Context) (queue.Stats, error)
}

// Renderer turns an event into an email.
type Renderer interface {
	Render(ev notification.Event) (render.Rendered, error)
}

// Config tunes polling and delivery.
type Config struct {
	BatchSize         int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	IdleCooldown      time.Duration
	ErrorBackoff      time.Duration
	MailTimeout       time.Duration
	AckTimeout        time.Duration
	Concurrency       int
	StatsInterval     time.Duration
}

// DefaultConfig matches the managed-queue defaults: batches of 10, 20s long
// poll, 60s visibility and a 5s pause when the queue is empty.
func DefaultConfig() Config {
	return Config{
		BatchSize:         10,
		WaitTime:          20 * time.Second,
		VisibilityTimeout: 60 * time.Second,
		IdleCooldown:      5 * time.Second,
		ErrorBackoff:      5 * time.Second,
		MailTimeout:       15 * time.Second,
		AckTimeout:        10 * time.Second,
		Concurrency:       4,
		StatsInterval:     time.Minute,
	}
}

// Counters are cumulative processing outcomes.
type Counters struct {
	Received     int64 `json:"received"`
	Sent         int64 `json:"sent"`
	Failed       int64 `json:"failed"`
	Poison       int64 `json:"poison"`
	DeleteErrors int64 `json:"delete_errors"`
}

// Worker is a queue consumer. It performs no database writes, so duplicate
// deliveries only cause duplicate emails.
type Worker struct {
	queue    Queue
	renderer Renderer
	mail     mail.Transport
	cfg      Config
	log      *zerolog.Logger

	draining atomic.Bool

	received     atomic.Int64
	sent         atomic.Int64
	failed       atomic.Int64
	poison       atomic.Int64
	deleteErrors atomic.Int64
}

// New creates a Worker.
func New(q Queue, renderer Renderer, transport mail.Transport, cfg Config, log *zerolog.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = DefaultConfig().MailTimeout
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultConfig().AckTimeout
	}
	return &Worker{
		queue:    q,
		renderer: renderer,
		mail:     transport,
		cfg:      cfg,
		log:      log,
	}
}

// Run polls until ctx is cancelled. The batch in flight at cancellation is
// finished before Run returns nil. Receive errors are logged and retried after
// ErrorBackoff.
func (w *Worker) Run(ctx context.Context) error {
	if !w.draining.CompareAndSwap(false, true) {
		return ErrAlreadyDraining
	}
	defer w.draining.Store(false)

	w.log.Info().
		Int("batch_size", w.cfg.BatchSize).
		Dur("wait_time", w.cfg.WaitTime).
		Dur("visibility_timeout", w.cfg.VisibilityTimeout).
		Int("concurrency", w.cfg.Concurrency).
		Msg("queue worker started")

	lastStats := time.Now()
	for ctx.Err() == nil {
		n, err := w.PollOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			// receive interrupted by shutdown
		case err != nil:
			w.log.Error().Err(err).Dur("backoff", w.cfg.ErrorBackoff).Msg("failed to receive messages")
			sleep(ctx, w.cfg.ErrorBackoff)
		case n == 0:
			sleep(ctx, w.cfg.IdleCooldown)
		}

		if w.cfg.StatsInterval > 0 && time.Since(lastStats) >= w.cfg.StatsInterval {
			w.logStats(ctx)
			lastStats = time.Now()
		}
	}

	c := w.Counters()
	w.log.Info().
		Int64("received", c.Received).
		Int64("sent", c.Sent).
		Int64("failed", c.Failed).
		Int64("poison", c.Poison).
		Msg("queue worker stopped")
	return nil
}

// IsDraining reports whether Run is active.
func (w *Worker) IsDraining() bool {
	return w.draining.Load()
}

// PollOnce receives one batch and processes it to completion. Processing runs
// under a context detached from ctx so shutdown does not abort sends midway.
func (w *Worker) PollOnce(ctx context.Context) (int, error) {
	msgs, err := w.queue.Receive(ctx, queue.ReceiveOptions{
		MaxMessages:       w.cfg.BatchSize,
		WaitTime:          w.cfg.WaitTime,
		VisibilityTimeout: w.cfg.VisibilityTimeout,
	})
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	w.received.Add(int64(len(msgs)))
	w.log.Debug().Int("count", len(msgs)).Msg("received batch")

	batchCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			w.process(batchCtx, msg)
			return nil
		})
	}
	_ = g.Wait()

	return len(msgs), nil
}

func (w *Worker) process(ctx context.Context, msg queue.Message) {
	log := w.log.With().
		Str("message_id", msg.ID).
		Int("receive_count", msg.ReceiveCount).
		Logger()

	ev, err := notification.Decode(msg.Body)
	if err != nil {
		// left unacknowledged; the broker dead-letters it after max receives
		w.poison.Add(1)
		log.Warn().Err(err).Msg("poison message")
		return
	}

	log = log.With().
		Str("kind", string(ev.Kind)).
		Str("idempotency_key", ev.IdempotencyKey).
		Str("recipient", ev.To).
		Logger()

	rendered, err := w.renderer.Render(ev)
	if err != nil {
		w.poison.Add(1)
		log.Warn().Err(err).Msg("failed to render notification")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.MailTimeout)
	providerID, err := w.mail.Send(sendCtx, mail.Message{
		To:             ev.To,
		Subject:        rendered.Subject,
		HTML:           rendered.HTML,
		Text:           rendered.Text,
		Kind:           string(ev.Kind),
		IdempotencyKey: ev.IdempotencyKey,
	})
	cancel()
	if err != nil {
		w.failed.Add(1)
		log.Error().Err(err).Msg("failed to send email; message will be redelivered")
		return
	}
	w.sent.Add(1)

	ackCtx, cancel := context.WithTimeout(ctx, w.cfg.AckTimeout)
	err = w.queue.Delete(ackCtx, msg.ReceiptHandle)
	cancel()
	if err != nil {
		w.deleteErrors.Add(1)
		log.Warn().Err(err).Str("provider_id", providerID).Msg("email sent but message not deleted")
		return
	}

	log.Info().Str("provider_id", providerID).Msg("email sent")
}

func (w *Worker) logStats(ctx context.Context) {
	statsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	s, err := w.queue.Stats(statsCtx)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to read queue stats")
		return
	}
	c := w.Counters()
	w.log.Info().
		Int64("available", s.Available).
		Int64("in_flight", s.InFlight).
		Int64("delayed", s.Delayed).
		Int64("dead_lettered", s.DeadLettered).
		Int64("sent", c.Sent).
		Int64("failed", c.Failed).
		Msg("queue stats")
}

// Counters returns cumulative outcomes.
func (w *Worker) Counters() Counters {
	return Counters{
		Received:     w.received.Load(),
		Sent:         w.sent.Load(),
		Failed:       w.failed.Load(),
		Poison:       w.poison.Load(),
		DeleteErrors: w.deleteErrors.Load(),
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
