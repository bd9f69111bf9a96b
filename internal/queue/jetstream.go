package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	natsclient "github.com/DIEGHOST64/Prisma/internal/nats"
)

// JetStreamConfig names the stream, subject and durable consumer.
type JetStreamConfig struct {
	Stream            string
	Subject           string
	Consumer          string
	VisibilityTimeout time.Duration
	MaxReceives       int
}

type jsInflight struct {
	msg        jetstream.Msg
	receivedAt time.Time
}

// JetStreamClient maps the queue model onto a work-queue stream with a durable
// pull consumer. AckWait acts as the visibility timeout. Messages delivered
// more than MaxReceives times are republished to the "<subject>.dead" subject
// of the same stream and terminated.
type JetStreamClient struct {
	client      *natsclient.Client
	cons        jetstream.Consumer
	stream      string
	subject     string
	deadSubject string
	ackWait     time.Duration
	maxReceives int

	mu       sync.Mutex
	inflight map[string]jsInflight
}

// NewJetStreamClient ensures the stream and consumer exist. The consumer's
// AckWait is fixed at creation, so per-call VisibilityTimeout is ignored.
func NewJetStreamClient(ctx context.Context, client *natsclient.Client, cfg JetStreamConfig) (*JetStreamClient, error) {
	dead := cfg.Subject + ".dead"
	if err := client.EnsureWorkQueue(ctx, cfg.Stream, []string{cfg.Subject, dead}); err != nil {
		return nil, err
	}

	// redelivery is unlimited on the server; the receive limit is enforced here
	cons, err := client.PullConsumer(ctx, cfg.Stream, cfg.Consumer, cfg.Subject, cfg.VisibilityTimeout, 0)
	if err != nil {
		return nil, err
	}

	return &JetStreamClient{
		client:      client,
		cons:        cons,
		stream:      cfg.Stream,
		subject:     cfg.Subject,
		deadSubject: dead,
		ackWait:     cfg.VisibilityTimeout,
		maxReceives: cfg.MaxReceives,
		inflight:    make(map[string]jsInflight),
	}, nil
}

// Send publishes body with attrs as headers.
func (c *JetStreamClient) Send(ctx context.Context, body []byte, attrs map[string]string) (string, error) {
	seq, err := c.client.Publish(ctx, c.subject, body, attrs)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(seq, 10), nil
}

// Receive fetches up to a batch, waiting at most opts.WaitTime. Cancelling
// ctx stops the wait; messages the server delivers afterwards are redelivered
// once AckWait passes.
func (c *JetStreamClient) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		batch jetstream.MessageBatch
		err   error
	)
	if opts.WaitTime > 0 {
		batch, err = c.cons.Fetch(opts.batchSize(), jetstream.FetchMaxWait(opts.WaitTime))
	} else {
		batch, err = c.cons.FetchNoWait(opts.batchSize())
	}
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	now := time.Now()
	var out []Message
	msgs := batch.Messages()
recv:
	for {
		select {
		case <-ctx.Done():
			break recv
		case m, ok := <-msgs:
			if !ok {
				break recv
			}
			msg, keep := c.accept(ctx, m, now)
			if keep {
				out = append(out, msg)
			}
		}
	}

	if len(out) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := batch.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) {
			return nil, fmt.Errorf("fetch messages: %w", err)
		}
	}

	c.prune(now)
	return out, nil
}

// accept converts m and tracks its receipt. Over-delivered messages are moved
// to the dead subject instead.
func (c *JetStreamClient) accept(ctx context.Context, m jetstream.Msg, now time.Time) (Message, bool) {
	msg := Message{
		Body:          m.Data(),
		ReceiptHandle: m.Reply(),
		ReceiveCount:  1,
	}
	if meta, err := m.Metadata(); err == nil {
		msg.ID = strconv.FormatUint(meta.Sequence.Stream, 10)
		msg.ReceiveCount = int(meta.NumDelivered)
	}
	if h := m.Headers(); len(h) > 0 {
		msg.Attributes = make(map[string]string, len(h))
		for k := range h {
			msg.Attributes[k] = h.Get(k)
		}
	}

	if c.maxReceives > 0 && msg.ReceiveCount > c.maxReceives {
		c.deadLetter(ctx, m, msg)
		return Message{}, false
	}

	c.mu.Lock()
	c.inflight[msg.ReceiptHandle] = jsInflight{msg: m, receivedAt: now}
	c.mu.Unlock()
	return msg, true
}

// deadLetter republishes msg to the dead subject, then terminates the
// original. If the publish fails the message is left for redelivery.
func (c *JetStreamClient) deadLetter(ctx context.Context, m jetstream.Msg, msg Message) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	headers := copyAttrs(msg.Attributes)
	if headers == nil {
		headers = make(map[string]string, 2)
	}
	headers["Original-Sequence"] = msg.ID
	headers["Receive-Count"] = strconv.Itoa(msg.ReceiveCount)

	if _, err := c.client.Publish(pubCtx, c.deadSubject, msg.Body, headers); err != nil {
		return
	}
	_ = m.TermWithReason("max receives exceeded")
}

// prune forgets receipts whose AckWait has passed; the server has already
// made those messages available again.
func (c *JetStreamClient) prune(now time.Time) {
	if c.ackWait <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for receipt, in := range c.inflight {
		if now.Sub(in.receivedAt) > c.ackWait {
			delete(c.inflight, receipt)
		}
	}
}

// Delete acknowledges the message and waits for the server to confirm.
func (c *JetStreamClient) Delete(ctx context.Context, receiptHandle string) error {
	c.mu.Lock()
	in, ok := c.inflight[receiptHandle]
	if ok {
		delete(c.inflight, receiptHandle)
	}
	c.mu.Unlock()

	if !ok {
		return ErrReceiptNotFound
	}
	if err := in.msg.DoubleAck(ctx); err != nil {
		return fmt.Errorf("ack message: %w", err)
	}
	return nil
}

// Stats reads the consumer's pending counters and the dead subject's size.
func (c *JetStreamClient) Stats(ctx context.Context) (Stats, error) {
	info, err := c.cons.Info(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("consumer info: %w", err)
	}
	dead, err := c.client.SubjectCount(ctx, c.stream, c.deadSubject)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Available:    int64(info.NumPending),
		InFlight:     int64(info.NumAckPending),
		DeadLettered: int64(dead),
	}, nil
}

// Ping reports an error when the NATS connection is down.
func (c *JetStreamClient) Ping(ctx context.Context) error {
	if !c.client.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

// Close closes the NATS connection.
func (c *JetStreamClient) Close() error {
	c.client.Close()
	return nil
}
