package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const contentPrefix = "kaizen:content:"

// ErrMiss is returned by ContentCache.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// ContentCache stores JSON-encoded list results for a short TTL.
type ContentCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewContentCache(client redis.Cmdable, ttl time.Duration) *ContentCache {
	return &ContentCache{client: client, ttl: ttl}
}

func (c *ContentCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.client.Get(ctx, contentPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode cached value: %w", err)
	}
	return nil
}

func (c *ContentCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.client.Set(ctx, contentPrefix+key, raw, c.ttl).Err()
}
