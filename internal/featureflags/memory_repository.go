package featureflags

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository keeps flags in process memory. It is the default store
// when no database is configured.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewInMemoryRepository creates a repository seeded with DefaultFlags.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWith(DefaultFlags())
}

// NewInMemoryRepositoryWith creates a repository seeded with a copy of
// flags.
func NewInMemoryRepositoryWith(flags map[string]*Flag) *InMemoryRepository {
	repo := &InMemoryRepository{flags: make(map[string]*Flag, len(flags))}
	for k, v := range flags {
		repo.flags[k] = v.clone()
	}
	return repo
}

// List implements Repository. Flags are ordered by key.
func (r *InMemoryRepository) List(_ context.Context) ([]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Flag, 0, len(r.flags))
	for _, f := range r.flags {
		out = append(out, f.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Upsert implements Repository.
func (r *InMemoryRepository) Upsert(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, flag := range flags {
		stored := flag.clone()
		stored.UpdatedAt = now
		r.flags[flag.Key] = stored
	}
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
