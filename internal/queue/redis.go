package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisPollInterval = 250 * time.Millisecond

// claimScript requeues expired in-flight ids, then pops up to ARGV[3] ready
// ids, bumping their receive count. Ids over the receive limit move to the
// dead-letter list instead of being returned.
//
// KEYS: ready, inflight, receives, receipts, dead
// ARGV: now_ms, visibility_ms, max, max_receives, receipt...
var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('HDEL', KEYS[4], id)
	redis.call('RPUSH', KEYS[1], id)
end

local out = {}
local max = tonumber(ARGV[3])
local maxReceives = tonumber(ARGV[4])
local deadline = tonumber(ARGV[1]) + tonumber(ARGV[2])
local claimed = 0
while claimed < max do
	local id = redis.call('RPOP', KEYS[1])
	if not id then break end
	local n = redis.call('HINCRBY', KEYS[3], id, 1)
	if maxReceives > 0 and n > maxReceives then
		redis.call('LPUSH', KEYS[5], id)
	else
		claimed = claimed + 1
		local receipt = ARGV[4 + claimed]
		redis.call('ZADD', KEYS[2], deadline, id)
		redis.call('HSET', KEYS[4], id, receipt)
		table.insert(out, id)
		table.insert(out, receipt)
		table.insert(out, n)
	end
end
return out
`)

// ackScript deletes a message only if receipt still owns it.
//
// KEYS: receipts, inflight, bodies, receives
// ARGV: id, receipt
var ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) ~= ARGV[2] then
	return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
return 1
`)

type redisEnvelope struct {
	Body  []byte            `json:"body"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// RedisClient implements visibility-timeout semantics on plain Redis
// structures: a ready list, an in-flight sorted set scored by deadline, and a
// dead-letter list.
type RedisClient struct {
	rdb         *redis.Client
	name        string
	maxReceives int
}

// NewRedisClient creates a queue stored under keys prefixed with name.
func NewRedisClient(rdb *redis.Client, name string, maxReceives int) *RedisClient {
	return &RedisClient{rdb: rdb, name: name, maxReceives: maxReceives}
}

// NewRedisClientFromURL parses url and pings the server.
func NewRedisClientFromURL(ctx context.Context, url, name string, maxReceives int) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisClient(rdb, name, maxReceives), nil
}

func (c *RedisClient) key(suffix string) string {
	return c.name + ":" + suffix
}

// Send stores the body and pushes its id onto the ready list.
func (c *RedisClient) Send(ctx context.Context, body []byte, attrs map[string]string) (string, error) {
	data, err := json.Marshal(redisEnvelope{Body: body, Attrs: attrs})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	id := uuid.NewString()
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key("bodies"), id, data)
		pipe.LPush(ctx, c.key("ready"), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue message: %w", err)
	}
	return id, nil
}

// Receive claims messages, polling until opts.WaitTime elapses.
func (c *RedisClient) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	deadline := time.Now().Add(opts.WaitTime)

	for {
		msgs, err := c.claim(ctx, opts)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if remaining > redisPollInterval {
			remaining = redisPollInterval
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *RedisClient) claim(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	limit := opts.batchSize()
	args := []any{
		time.Now().UnixMilli(),
		opts.VisibilityTimeout.Milliseconds(),
		limit,
		c.maxReceives,
	}
	for i := 0; i < limit; i++ {
		args = append(args, uuid.NewString())
	}

	keys := []string{c.key("ready"), c.key("inflight"), c.key("receives"), c.key("receipts"), c.key("dead")}
	res, err := claimScript.Run(ctx, c.rdb, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("claim messages: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(res)/3)
	msgs := make([]Message, 0, len(res)/3)
	for i := 0; i+2 < len(res); i += 3 {
		id, _ := res[i].(string)
		receipt, _ := res[i+1].(string)
		count, _ := res[i+2].(int64)
		ids = append(ids, id)
		msgs = append(msgs, Message{
			ID:            id,
			ReceiptHandle: id + "|" + receipt,
			ReceiveCount:  int(count),
		})
	}

	bodies, err := c.rdb.HMGet(ctx, c.key("bodies"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load message bodies: %w", err)
	}

	out := msgs[:0]
	for i, raw := range bodies {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var env redisEnvelope
		if err := json.Unmarshal([]byte(s), &env); err != nil {
			// keep the raw payload so the consumer can classify it as poison
			env.Body = []byte(s)
		}
		msgs[i].Body = env.Body
		msgs[i].Attributes = env.Attrs
		out = append(out, msgs[i])
	}
	return out, nil
}

// Delete acknowledges a message if the receipt is still current.
func (c *RedisClient) Delete(ctx context.Context, receiptHandle string) error {
	id, receipt, ok := strings.Cut(receiptHandle, "|")
	if !ok {
		return ErrReceiptNotFound
	}

	keys := []string{c.key("receipts"), c.key("inflight"), c.key("bodies"), c.key("receives")}
	n, err := ackScript.Run(ctx, c.rdb, keys, id, receipt).Int()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// Stats reports list and set sizes.
func (c *RedisClient) Stats(ctx context.Context) (Stats, error) {
	pipe := c.rdb.Pipeline()
	ready := pipe.LLen(ctx, c.key("ready"))
	inflight := pipe.ZCard(ctx, c.key("inflight"))
	dead := pipe.LLen(ctx, c.key("dead"))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}

	return Stats{
		Available:    ready.Val(),
		InFlight:     inflight.Val(),
		DeadLettered: dead.Val(),
	}, nil
}

// Ping checks if the Redis connection is alive.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}
