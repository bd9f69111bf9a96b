// Package nats provides a client for NATS JetStream work queues.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Client wraps nats connection and jetstream context.
type Client struct {
	Conn *nats.Conn
	js   jetstream.JetStream
}

// New creates a new nats client with jetstream support.
func New(_ context.Context, natsURL string) (*Client, error) {
	conn, err := nats.Connect(natsURL, nats.Name("prisma-notifications"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Client{Conn: conn, js: js}, nil
}

// EnsureWorkQueue creates or updates a work-queue stream. Each message is
// removed from the stream once acknowledged.
func (c *Client) EnsureWorkQueue(ctx context.Context, name string, subjects []string) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}

// PullConsumer creates or updates a durable pull consumer. ackWait plays the
// role of a visibility timeout; maxDeliver of zero means unlimited.
func (c *Client) PullConsumer(ctx context.Context, stream, durable, subject string, ackWait time.Duration, maxDeliver int) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
	}
	if maxDeliver > 0 {
		cfg.MaxDeliver = maxDeliver
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	return cons, nil
}

// Publish publishes data with headers and returns the stream sequence.
func (c *Client) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) (uint64, error) {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	ack, err := c.js.PublishMsg(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", subject, err)
	}
	return ack.Sequence, nil
}

// SubjectCount returns how many messages stream holds on subject.
func (c *Client) SubjectCount(ctx context.Context, stream, subject string) (uint64, error) {
	st, err := c.js.Stream(ctx, stream)
	if err != nil {
		return 0, fmt.Errorf("get stream %s: %w", stream, err)
	}
	info, err := st.Info(ctx, jetstream.WithSubjectFilter(subject))
	if err != nil {
		return 0, fmt.Errorf("stream info %s: %w", stream, err)
	}
	return info.State.Subjects[subject], nil
}

// Close drains and closes the nats connection.
func (c *Client) Close() {
	_ = c.Conn.Drain()
	c.Conn.Close()
}

// IsConnected returns true if connected to nats.
func (c *Client) IsConnected() bool {
	return c.Conn.IsConnected()
}
