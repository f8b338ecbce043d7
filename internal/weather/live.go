package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// cell is a grid cell of the live-conditions cache.
type cell struct {
	lat, lon int64
}

type liveEntry struct {
	obs       *Observation
	fetchedAt time.Time
}

// liveCache holds live observations per grid cell. Entries are fresh for ttl
// and kept for stale reads until staleTTL, after which a sweep drops them.
type liveCache struct {
	ttl      time.Duration
	staleTTL time.Duration
	grid     float64

	mu        sync.RWMutex
	entries   map[cell]liveEntry
	lastSweep time.Time
}

func newLiveCache(ttl, staleTTL time.Duration, grid float64) *liveCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if staleTTL <= 0 {
		staleTTL = time.Hour
	}
	if grid <= 0 {
		grid = 0.1
	}
	return &liveCache{ttl: ttl, staleTTL: staleTTL, grid: grid, entries: make(map[cell]liveEntry)}
}

func (c *liveCache) cellOf(lat, lon float64) cell {
	return cell{lat: int64(math.Floor(lat / c.grid)), lon: int64(math.Floor(lon / c.grid))}
}

// lookup returns the entry for k if it is younger than maxAge.
func (c *liveCache) lookup(k cell, maxAge time.Duration, now time.Time) (*Observation, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[k]
	if !ok || now.Sub(e.fetchedAt) >= maxAge {
		return nil, time.Time{}, false
	}
	return e.obs, e.fetchedAt, true
}

func (c *liveCache) store(k cell, obs *Observation, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = liveEntry{obs: obs, fetchedAt: now}

	if now.Sub(c.lastSweep) < 5*time.Minute {
		return
	}
	c.lastSweep = now
	for key, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.staleTTL {
			delete(c.entries, key)
		}
	}
}

func (c *liveCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cell]liveEntry)
}

// GetCurrentWeather returns live conditions for a coordinate. Readings are
// cached per grid cell; when the provider fails, a reading younger than the
// stale window is served instead.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if s.current == nil {
		return nil, ErrProviderUnavailable
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}

	k := s.live.cellOf(lat, lon)
	if obs, _, ok := s.live.lookup(k, s.live.ttl, time.Now()); ok {
		return obs, nil
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", s.current.Name()).
		Msg("fetching current weather")

	obs, err := s.current.Current(ctx, lat, lon)
	if err != nil {
		if stale, fetchedAt, ok := s.live.lookup(k, s.live.staleTTL, time.Now()); ok {
			s.logger.Warn().Err(err).Time("fetched_at", fetchedAt).Msg("serving stale weather")
			return stale, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	s.live.store(k, obs, time.Now())
	return obs, nil
}

// InvalidateCache drops every cached observation.
func (s *Service) InvalidateCache() {
	s.live.reset()
}

// CacheStats describes the live-conditions cache.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Provider     string
}

// CacheStats returns the current cache counts.
func (s *Service) CacheStats() CacheStats {
	stats := CacheStats{}
	if s.current != nil {
		stats.Provider = s.current.Name()
	}

	now := time.Now()
	s.live.mu.RLock()
	defer s.live.mu.RUnlock()
	stats.Entries = len(s.live.entries)
	for _, e := range s.live.entries {
		if now.Sub(e.fetchedAt) < s.live.ttl {
			stats.FreshEntries++
		}
	}
	return stats
}
