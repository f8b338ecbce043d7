package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Supplier health states as reported by the ops status endpoint.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// SupplierHealth is the health of one upstream supplier client.
type SupplierHealth struct {
	Name          string          `json:"name"`
	Status        string          `json:"status"`
	CircuitState  gobreaker.State `json:"-"`
	Circuit       string          `json:"circuit"`
	Requests      uint32          `json:"requests"`
	Failures      uint32          `json:"failures"`
	LastSuccessAt *time.Time      `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time      `json:"lastFailureAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	TrippedAt     *time.Time      `json:"trippedAt,omitempty"`
}

// IsHealthy reports a closed circuit.
func (h *SupplierHealth) IsHealthy() bool { return h.CircuitState == gobreaker.StateClosed }

// IsDegraded reports a half-open circuit.
func (h *SupplierHealth) IsDegraded() bool { return h.CircuitState == gobreaker.StateHalfOpen }

// IsUnhealthy reports an open circuit.
func (h *SupplierHealth) IsUnhealthy() bool { return h.CircuitState == gobreaker.StateOpen }

func statusFor(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return StatusUnhealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Registry tracks supplier clients and their last outcomes. A nil *Registry
// ignores every call. Breaker state is read outside the registry lock since
// state-change callbacks run under the breaker's own lock.
type Registry struct {
	mu        sync.RWMutex
	suppliers map[string]*registeredSupplier
}

type registeredSupplier struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
	trippedAt     *time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{suppliers: make(map[string]*registeredSupplier)}
}

// Register adds a supplier client under name, replacing any previous one.
func (r *Registry) Register(name string, client *Client) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppliers[name] = &registeredSupplier{client: client}
}

// RecordSuccess records a successful request.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(s *registeredSupplier, now time.Time) {
		s.lastSuccessAt = &now
	})
}

// RecordFailure records a failed request.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(s *registeredSupplier, now time.Time) {
		s.lastFailureAt = &now
		if err != nil {
			s.lastError = err.Error()
		}
	})
}

// RecordStateChange records a breaker transition; opening sets TrippedAt and
// closing clears it.
func (r *Registry) RecordStateChange(name string, to gobreaker.State) {
	r.update(name, func(s *registeredSupplier, now time.Time) {
		switch to {
		case gobreaker.StateOpen:
			s.trippedAt = &now
		case gobreaker.StateClosed:
			s.trippedAt = nil
		}
	})
}

func (r *Registry) update(name string, fn func(*registeredSupplier, time.Time)) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.suppliers[name]; ok {
		fn(s, time.Now())
	}
}

// GetHealth returns the health of one supplier, or nil when it is unknown.
func (r *Registry) GetHealth(name string) *SupplierHealth {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	s, ok := r.suppliers[name]
	var snapshot registeredSupplier
	if ok {
		snapshot = *s
	}
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return snapshot.health(name)
}

// Snapshot returns the health of every supplier ordered by name.
func (r *Registry) Snapshot() []*SupplierHealth {
	if r == nil {
		return []*SupplierHealth{}
	}
	r.mu.RLock()
	copies := make(map[string]registeredSupplier, len(r.suppliers))
	for name, s := range r.suppliers {
		copies[name] = *s
	}
	r.mu.RUnlock()

	out := make([]*SupplierHealth, 0, len(copies))
	for name, s := range copies {
		out = append(out, s.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Overall is the worst status across all suppliers; an empty registry is
// healthy.
func (r *Registry) Overall() string {
	overall := StatusHealthy
	for _, h := range r.Snapshot() {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// SupplierCount returns the number of registered suppliers.
func (r *Registry) SupplierCount() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.suppliers)
}

func (s *registeredSupplier) health(name string) *SupplierHealth {
	state := s.client.CircuitBreakerState()
	counts := s.client.CircuitBreakerCounts()
	return &SupplierHealth{
		Name:          name,
		Status:        statusFor(state),
		CircuitState:  state,
		Circuit:       state.String(),
		Requests:      counts.Requests,
		Failures:      counts.TotalFailures,
		LastSuccessAt: s.lastSuccessAt,
		LastFailureAt: s.lastFailureAt,
		LastError:     s.lastError,
		TrippedAt:     s.trippedAt,
	}
}
