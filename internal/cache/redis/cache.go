// Package redis provides a Redis-backed response cache for shared deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hireloop/jobradar/internal/jobs"
)

// DefaultTTL matches the in-memory provider.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "jobradar:cache:"

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Cache implements jobs.Cache on Redis. TTL enforcement is delegated to
// Redis key expiry, so expiry is a hard boundary here too.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a Cache around an existing client.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached payload for key, or a miss when absent or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]jobs.Listing, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	var listings []jobs.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		// A payload we can no longer decode is as good as expired.
		return nil, false, nil
	}
	return listings, true, nil
}

// Put stores the payload under the configured TTL.
func (c *Cache) Put(ctx context.Context, key string, listings []jobs.Listing) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}
