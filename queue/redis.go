package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list that RedisQueue appends to when no key is given.
const DefaultRedisKey = "commands"

type redisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// RedisQueue appends JSON-encoded entries to a Redis list.
type RedisQueue struct {
	client redisClient
	key    string
}

// NewRedisQueue connects to the server at address, a redis:// URL.
func NewRedisQueue(address, key string) (*RedisQueue, error) {
	if address == "" {
		address = "redis://127.0.0.1:6379"
	}
	options, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return newRedisQueue(redis.NewClient(options), key), nil
}

func newRedisQueue(client redisClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Store(ctx context.Context, entry Entry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis push to %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
