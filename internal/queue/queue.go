// Package queue provides at-least-once message queue clients with visibility
// timeouts. A received message stays hidden from other consumers until its
// visibility expires; deleting it with its receipt handle acknowledges it.
package queue

import (
	"context"
	"errors"
	"time"
)

// MaxBatchSize is the upper bound on messages returned by one Receive.
const MaxBatchSize = 10

// ErrReceiptNotFound is returned when a receipt handle no longer owns a message,
// usually because its visibility expired and it was received again.
var ErrReceiptNotFound = errors.New("receipt handle not found")

// Message is one delivery of a queued body.
type Message struct {
	ID            string
	Body          []byte
	ReceiptHandle string
	ReceiveCount  int
	Attributes    map[string]string
}

// ReceiveOptions controls a single Receive call.
type ReceiveOptions struct {
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
}

func (o ReceiveOptions) batchSize() int {
	switch {
	case o.MaxMessages <= 0:
		return 1
	case o.MaxMessages > MaxBatchSize:
		return MaxBatchSize
	default:
		return o.MaxMessages
	}
}

// Stats is an approximate snapshot of queue depth.
type Stats struct {
	Available    int64 `json:"available"`
	InFlight     int64 `json:"in_flight"`
	Delayed      int64 `json:"delayed"`
	DeadLettered int64 `json:"dead_lettered"`
}

// Client is implemented by every queue backend.
type Client interface {
	Send(ctx context.Context, body []byte, attrs map[string]string) (string, error)
	Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

func copyAttrs(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
