package httpclient

import (
	"sync"
	"time"
)

// CircuitBreakerManager maintains named circuit breakers so multiple clients
// targeting the same origin can share failure state.
type CircuitBreakerManager struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerManager creates an empty manager.
func NewCircuitBreakerManager() *CircuitBreakerManager {
	return &CircuitBreakerManager{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the breaker registered under key, creating it with the
// given parameters if it does not exist yet.
func (m *CircuitBreakerManager) GetOrCreate(key string, threshold int, timeout time.Duration, halfOpenMax int) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[key]; ok {
		return cb
	}
	cb := NewCircuitBreaker(threshold, timeout, halfOpenMax)
	m.breakers[key] = cb
	return cb
}

// Get returns the breaker registered under key, or nil.
func (m *CircuitBreakerManager) Get(key string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakers[key]
}

// ResetAll resets every registered breaker to the closed state.
func (m *CircuitBreakerManager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cb := range m.breakers {
		cb.Reset()
	}
}

// AllStats returns a snapshot of every breaker's counters keyed by name.
func (m *CircuitBreakerManager) AllStats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]Stats, len(m.breakers))
	for key, cb := range m.breakers {
		stats[key] = cb.Stats()
	}
	return stats
}

// DefaultManager is the process-wide circuit breaker manager.
var DefaultManager = NewCircuitBreakerManager()
