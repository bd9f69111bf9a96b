package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natsclient "github.com/DIEGHOST64/Prisma/internal/nats"
)

// Set INTEGRATION_TEST=1 with REDIS_URL / NATS_URL to run these.

func requireIntegration(t *testing.T, envKey string) string {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=1 to run")
	}
	val := os.Getenv(envKey)
	if val == "" {
		t.Skipf("Skipping integration test; %s not set", envKey)
	}
	return val
}

// exerciseClient runs the send/receive/redeliver/delete contract shared by
// every backend.
func exerciseClient(t *testing.T, c Client, visibility time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := c.Send(ctx, []byte(`{"kind":"submission_confirmation"}`), map[string]string{"Type": "submission_confirmation"})
	require.NoError(t, err)

	opts := ReceiveOptions{MaxMessages: 10, WaitTime: 2 * time.Second, VisibilityTimeout: visibility}

	first, err := c.Receive(ctx, opts)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].ReceiveCount)
	assert.Equal(t, "submission_confirmation", first[0].Attributes["Type"])

	time.Sleep(visibility + 500*time.Millisecond)

	second, err := c.Receive(ctx, opts)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].ReceiveCount)

	require.NoError(t, c.Delete(ctx, second[0].ReceiptHandle))

	empty, err := c.Receive(ctx, ReceiveOptions{MaxMessages: 10, WaitTime: 500 * time.Millisecond, VisibilityTimeout: visibility})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisClient_Integration(t *testing.T) {
	url := requireIntegration(t, "REDIS_URL")

	c, err := NewRedisClientFromURL(context.Background(), url, "prisma:test:"+uuid.NewString(), 5)
	require.NoError(t, err)
	defer c.Close()

	exerciseClient(t, c, time.Second)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestJetStreamClient_Integration(t *testing.T) {
	url := requireIntegration(t, "NATS_URL")
	ctx := context.Background()

	nc, err := natsclient.New(ctx, url)
	require.NoError(t, err)

	suffix := uuid.NewString()[:8]
	c, err := NewJetStreamClient(ctx, nc, JetStreamConfig{
		Stream:            "TEST_NOTIFICATIONS_" + suffix,
		Subject:           "test.notifications." + suffix,
		Consumer:          "test-worker-" + suffix,
		VisibilityTimeout: time.Second,
		MaxReceives:       5,
	})
	require.NoError(t, err)
	defer c.Close()

	exerciseClient(t, c, time.Second)
}

func newTestJetStream(t *testing.T, maxReceives int) *JetStreamClient {
	t.Helper()
	url := requireIntegration(t, "NATS_URL")
	ctx := context.Background()

	nc, err := natsclient.New(ctx, url)
	require.NoError(t, err)

	suffix := uuid.NewString()[:8]
	c, err := NewJetStreamClient(ctx, nc, JetStreamConfig{
		Stream:            "TEST_DLQ_" + suffix,
		Subject:           "test.dlq." + suffix,
		Consumer:          "test-dlq-" + suffix,
		VisibilityTimeout: time.Second,
		MaxReceives:       maxReceives,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestJetStreamClient_DeadLettersAfterMaxReceives(t *testing.T) {
	c := newTestJetStream(t, 1)
	ctx := context.Background()

	_, err := c.Send(ctx, []byte(`not json`), nil)
	require.NoError(t, err)

	opts := ReceiveOptions{MaxMessages: 10, WaitTime: 2 * time.Second}
	first, err := c.Receive(ctx, opts)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(1500 * time.Millisecond)

	second, err := c.Receive(ctx, opts)
	require.NoError(t, err)
	assert.Empty(t, second, "over-delivered message must not reach the worker")

	require.Eventually(t, func() bool {
		stats, err := c.Stats(ctx)
		return err == nil && stats.DeadLettered == 1
	}, 5*time.Second, 100*time.Millisecond)
	require.NoError(t, c.Ping(ctx))
}

func TestJetStreamClient_ReceiveStopsOnCancel(t *testing.T) {
	c := newTestJetStream(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	msgs, err := c.Receive(ctx, ReceiveOptions{MaxMessages: 10, WaitTime: 10 * time.Second})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, msgs)
	assert.Less(t, time.Since(start), 2*time.Second)
}
