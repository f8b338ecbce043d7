package featureflags

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL is how long a loaded flag set is served before reloading.
	// Default: 1 minute
	CacheTTL time.Duration

	// DefaultFlags fill keys the repository does not hold.
	// Default: DefaultFlags()
	DefaultFlags map[string]*Flag
}

// Service evaluates capability flags. The whole flag set is loaded at once,
// merged over the defaults and cached for CacheTTL. When the repository
// fails, the last loaded set is served, or the defaults before any load.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	ttl      time.Duration
	defaults map[string]*Flag

	mu       sync.RWMutex
	current  map[string]*Flag
	loadedAt time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	defaults := cfg.DefaultFlags
	if defaults == nil {
		defaults = DefaultFlags()
	}

	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger.With().Str("component", "featureflags").Logger(),
		ttl:      ttl,
		defaults: defaults,
	}
}

// GetFlag returns the flag under key, or nil for unknown keys.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	return s.snapshot(ctx)[key]
}

// GetAllFlags returns every flag, stored values over defaults. The map is
// the caller's.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	snap := s.snapshot(ctx)
	out := make(map[string]*Flag, len(snap))
	for k, v := range snap {
		out[k] = v.clone()
	}
	return out
}

// SetFlags stores flags and drops the cached set so the next read sees them.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}

	if err := s.repo.Upsert(ctx, flags); err != nil {
		return err
	}
	s.InvalidateCache()
	return nil
}

// InvalidateCache forces a reload on the next read. A failed reload still
// serves the previous set.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedAt = time.Time{}
}

// IsEnabled reports whether the boolean flag under key is on. Unknown keys
// are off.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// ForecastHorizon returns the configured horizon in days, falling back to
// DefaultForecastHorizon for missing or non-positive values.
func (s *Service) ForecastHorizon(ctx context.Context) int {
	days := s.GetFlag(ctx, FlagForecastHorizonDays).IntValue(DefaultForecastHorizon)
	if days <= 0 {
		return DefaultForecastHorizon
	}
	return days
}

// snapshot returns the current flag set. Callers must not modify it.
func (s *Service) snapshot(ctx context.Context) map[string]*Flag {
	s.mu.RLock()
	current, fresh := s.current, time.Since(s.loadedAt) < s.ttl
	s.mu.RUnlock()
	if current != nil && fresh {
		return current
	}

	stored, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn().Ctx(ctx).Err(err).Bool("stale", current != nil).Msg("failed to load capability flags")
		if current != nil {
			return current
		}
		return s.defaults
	}

	merged := make(map[string]*Flag, len(s.defaults)+len(stored))
	for k, v := range s.defaults {
		merged[k] = v
	}
	for _, f := range stored {
		merged[f.Key] = f
	}

	s.mu.Lock()
	s.current = merged
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return merged
}
