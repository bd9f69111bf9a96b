package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedMemory(maxReceives int) (*MemoryClient, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := NewMemoryClient(maxReceives)
	q.now = clock.Now
	return q, clock
}

var visible = ReceiveOptions{MaxMessages: 10, VisibilityTimeout: time.Minute}

func TestMemoryClient_SendReceiveDelete(t *testing.T) {
	q, _ := newClockedMemory(0)
	ctx := context.Background()

	id, err := q.Send(ctx, []byte("hello"), map[string]string{"Type": "status_changed"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := q.Receive(ctx, visible)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "hello", string(msgs[0].Body))
	assert.Equal(t, 1, msgs[0].ReceiveCount)
	assert.Equal(t, "status_changed", msgs[0].Attributes["Type"])

	require.NoError(t, q.Delete(ctx, msgs[0].ReceiptHandle))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestMemoryClient_VisibilityTimeoutRedelivers(t *testing.T) {
	q, clock := newClockedMemory(0)
	ctx := context.Background()

	_, err := q.Send(ctx, []byte("x"), nil)
	require.NoError(t, err)

	first, err := q.Receive(ctx, visible)
	require.NoError(t, err)
	require.Len(t, first, 1)

	hidden, err := q.Receive(ctx, visible)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(1), stats.InFlight)

	clock.Advance(time.Minute + time.Second)

	second, err := q.Receive(ctx, visible)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].ReceiveCount)
	assert.NotEqual(t, first[0].ReceiptHandle, second[0].ReceiptHandle)

	assert.ErrorIs(t, q.Delete(ctx, first[0].ReceiptHandle), ErrReceiptNotFound)
	assert.NoError(t, q.Delete(ctx, second[0].ReceiptHandle))
}

func TestMemoryClient_DeadLettersAfterMaxReceives(t *testing.T) {
	q, clock := newClockedMemory(2)
	ctx := context.Background()

	_, err := q.Send(ctx, []byte("poison"), nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		msgs, err := q.Receive(ctx, visible)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		clock.Advance(2 * time.Minute)
	}

	msgs, err := q.Receive(ctx, visible)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "poison", string(dead[0].Body))

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(1), stats.DeadLettered)
	assert.Zero(t, stats.Available)
}

func TestMemoryClient_BatchSizeCapped(t *testing.T) {
	q, _ := newClockedMemory(0)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := q.Send(ctx, []byte("m"), nil)
		require.NoError(t, err)
	}

	msgs, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 50, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	assert.Len(t, msgs, MaxBatchSize)

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(5), stats.Available)
	assert.Equal(t, int64(10), stats.InFlight)
}

func TestMemoryClient_LongPollWakesOnSend(t *testing.T) {
	q := NewMemoryClient(0)
	ctx := context.Background()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = q.Send(ctx, []byte("late"), nil)
	}()

	start := time.Now()
	msgs, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: 2 * time.Second, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMemoryClient_ReceiveHonorsContext(t *testing.T) {
	q := NewMemoryClient(0)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	msgs, err := q.Receive(ctx, ReceiveOptions{WaitTime: 5 * time.Second})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, msgs)
}

func TestMemoryClient_EmptyReceiveReturnsAfterWait(t *testing.T) {
	q := NewMemoryClient(0)

	msgs, err := q.Receive(context.Background(), ReceiveOptions{WaitTime: 40 * time.Millisecond})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryClient_Contract(t *testing.T) {
	exerciseClient(t, NewMemoryClient(5), 200*time.Millisecond)
}

var (
	_ Client = (*MemoryClient)(nil)
	_ Client = (*SQSClient)(nil)
	_ Client = (*RedisClient)(nil)
	_ Client = (*JetStreamClient)(nil)
)
