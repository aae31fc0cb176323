package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps window entries in Redis with the TTL enforced by the
// server, so stale entries disappear on their own.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: "window:", ttl: ttl}, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "window:", ttl: ttl}
}

func (c *RedisCache) key(assessmentID string) string {
	return c.prefix + assessmentID
}

func (c *RedisCache) Get(ctx context.Context, assessmentID string) (Entry, bool, error) {
	payload, err := c.client.Get(ctx, c.key(assessmentID)).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cached window: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("unmarshal cached window: %w", err)
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, assessmentID string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cached window: %w", err)
	}
	if err := c.client.Set(ctx, c.key(assessmentID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached window: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, assessmentID string) error {
	if err := c.client.Del(ctx, c.key(assessmentID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached window: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
