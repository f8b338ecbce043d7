package satellite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/region"
)

// DefaultCacheTTL is how long supplier responses are cached.
const DefaultCacheTTL = 15 * time.Minute

// Cache stores JSON-encodable supplier responses.
type Cache interface {
	// Get decodes the value under key into out. It reports false on a miss.
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache. Keys are namespaced by prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

// CachedEvents wraps an EventSource with a cache. Cache errors fall
// through to the source.
type CachedEvents struct {
	source EventSource
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedEvents creates a caching event source.
func NewCachedEvents(source EventSource, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedEvents {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEvents{source: source, cache: cache, ttl: ttl, logger: logger}
}

// Events implements EventSource.
func (c *CachedEvents) Events(ctx context.Context) ([]Event, error) {
	const key = "events:open"

	var events []Event
	hit, err := c.cache.Get(ctx, key, &events)
	if err != nil {
		c.logger.Warn().Err(err).Msg("event cache read failed")
	}
	if hit {
		return events, nil
	}

	events, err = c.source.Events(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, events, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("event cache write failed")
	}
	return events, nil
}

// CachedPM25 wraps a PM25Source with a cache keyed by region.
type CachedPM25 struct {
	source PM25Source
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedPM25 creates a caching PM2.5 source.
func NewCachedPM25(source PM25Source, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedPM25 {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedPM25{source: source, cache: cache, ttl: ttl, logger: logger}
}

// PM25 implements PM25Source.
func (c *CachedPM25) PM25(ctx context.Context, r region.Region) (float64, error) {
	key := "pm25:" + strings.ToLower(r.Name)

	var value float64
	hit, err := c.cache.Get(ctx, key, &value)
	if err != nil {
		c.logger.Warn().Err(err).Str("region", r.Name).Msg("pm2.5 cache read failed")
	}
	if hit {
		return value, nil
	}

	value, err = c.source.PM25(ctx, r)
	if err != nil {
		return 0, err
	}
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("region", r.Name).Msg("pm2.5 cache write failed")
	}
	return value, nil
}
