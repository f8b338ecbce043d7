package satellite_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/satellite"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	m.ttls[key] = ttl
	return nil
}

func TestCachedEvents(t *testing.T) {
	source := &staticEvents{events: []satellite.Event{
		{ID: "fire", Category: satellite.CategoryWildfires, Date: time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC)},
	}}
	cache := newMemoryCache()
	cached := satellite.NewCachedEvents(source, cache, 0, zerolog.Nop())

	first, err := cached.Events(context.Background())
	require.NoError(t, err)
	second, err := cached.Events(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, satellite.DefaultCacheTTL, cache.ttls["events:open"])
}

func TestCachedEvents_SourceErrorNotCached(t *testing.T) {
	source := &staticEvents{err: errors.New("down")}
	cache := newMemoryCache()
	cached := satellite.NewCachedEvents(source, cache, time.Minute, zerolog.Nop())

	_, err := cached.Events(context.Background())
	assert.Error(t, err)
	_, err = cached.Events(context.Background())
	assert.Error(t, err)

	assert.Equal(t, 2, source.calls)
	assert.Empty(t, cache.entries)
}

func TestCachedPM25(t *testing.T) {
	source := &staticPM25{value: 55}
	cache := newMemoryCache()
	cached := satellite.NewCachedPM25(source, cache, time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		v, err := cached.PM25(context.Background(), nagpur)
		require.NoError(t, err)
		assert.Equal(t, 55.0, v)
	}
	assert.Equal(t, 1, source.calls)
	assert.Contains(t, cache.entries, "pm25:nagpur")
}

func TestRedisCache_UnreachableFallsThrough(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := satellite.NewRedisCache(client, "airexposure:")

	var out float64
	hit, err := cache.Get(context.Background(), "pm25:nagpur", &out)
	assert.False(t, hit)
	assert.Error(t, err)

	source := &staticPM25{value: 42}
	cached := satellite.NewCachedPM25(source, cache, time.Minute, zerolog.Nop())
	v, err := cached.PM25(context.Background(), nagpur)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
}
