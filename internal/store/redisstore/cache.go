package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sittingbulll/tokenwatch/internal/store"
)

const keyPrefix = "tokenwatch:cid:"

// Cache is a Redis-backed content cache, used instead of the embedded
// database when multiple instances should share fetched documents.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(url string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

func (c *Cache) Put(ctx context.Context, key string, doc []byte) error {
	if err := c.client.Set(ctx, keyPrefix+key, doc, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
