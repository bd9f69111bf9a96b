package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memoryPollInterval = 25 * time.Millisecond

type memoryEntry struct {
	id        string
	body      []byte
	attrs     map[string]string
	receives  int
	receipt   string
	visibleAt time.Time
}

// MemoryClient is an in-process queue with visibility timeouts and a
// dead-letter list. It backs local development and tests.
type MemoryClient struct {
	mu          sync.Mutex
	entries     []*memoryEntry
	dead        []Message
	maxReceives int
	notify      chan struct{}
	now         func() time.Time
}

// NewMemoryClient creates a memory queue. Messages received more than
// maxReceives times are dead-lettered; zero disables dead-lettering.
func NewMemoryClient(maxReceives int) *MemoryClient {
	return &MemoryClient{
		maxReceives: maxReceives,
		notify:      make(chan struct{}, 1),
		now:         time.Now,
	}
}

// Send appends a message and wakes one waiting receiver.
func (q *MemoryClient) Send(ctx context.Context, body []byte, attrs map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	q.mu.Lock()
	q.entries = append(q.entries, &memoryEntry{
		id:        id,
		body:      append([]byte(nil), body...),
		attrs:     copyAttrs(attrs),
		visibleAt: q.now(),
	})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return id, nil
}

// Receive claims up to opts.MaxMessages visible messages, waiting up to
// opts.WaitTime for at least one.
func (q *MemoryClient) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	deadline := time.Now().Add(opts.WaitTime)

	for {
		if msgs := q.claim(opts); len(msgs) > 0 {
			return msgs, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if remaining > memoryPollInterval {
			remaining = memoryPollInterval
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *MemoryClient) claim(opts ReceiveOptions) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	limit := opts.batchSize()
	var out []Message

	kept := q.entries[:0]
	for _, e := range q.entries {
		if len(out) >= limit || e.visibleAt.After(now) {
			kept = append(kept, e)
			continue
		}
		if q.maxReceives > 0 && e.receives >= q.maxReceives {
			q.dead = append(q.dead, Message{ID: e.id, Body: e.body, ReceiveCount: e.receives, Attributes: e.attrs})
			continue
		}

		e.receives++
		e.receipt = uuid.NewString()
		e.visibleAt = now.Add(opts.VisibilityTimeout)
		out = append(out, Message{
			ID:            e.id,
			Body:          append([]byte(nil), e.body...),
			ReceiptHandle: e.receipt,
			ReceiveCount:  e.receives,
			Attributes:    copyAttrs(e.attrs),
		})
		kept = append(kept, e)
	}
	q.entries = kept

	return out
}

// Delete acknowledges the message currently owned by receiptHandle.
func (q *MemoryClient) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.receipt != "" && e.receipt == receiptHandle {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return ErrReceiptNotFound
}

// Stats counts visible, hidden and dead-lettered messages.
func (q *MemoryClient) Stats(ctx context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var s Stats
	for _, e := range q.entries {
		if e.visibleAt.After(now) {
			s.InFlight++
		} else {
			s.Available++
		}
	}
	s.DeadLettered = int64(len(q.dead))
	return s, nil
}

// DeadLetters returns a copy of the dead-letter list.
func (q *MemoryClient) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.dead...)
}

// Close is a no-op.
func (q *MemoryClient) Close() error {
	return nil
}
