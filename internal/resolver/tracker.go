package resolver

import "sync"

// Tracker records which candidate URLs have been attempted for each media
// reference, and how many fallback hops have been taken. Entries survive
// individual resolution runs so a reference is never retried beyond its cap
// within the same process; they are cleared only by an explicit Reset (manual
// retry or reference change).
type Tracker interface {
	// Tried reports whether candidate was already attempted for key.
	Tried(key, candidate string) bool

	// MarkTried records candidate as attempted for key.
	MarkTried(key, candidate string)

	// Attempts returns the number of fallback hops taken for key.
	Attempts(key string) int

	// IncrementAttempts bumps the hop count for key and returns the new
	// value.
	IncrementAttempts(key string) int

	// Reset clears all tracked state for key.
	Reset(key string)
}

// MemoryTracker is an in-memory Tracker safe for concurrent use. Per key it
// is append-only between resets.
type MemoryTracker struct {
	mu       sync.RWMutex
	tried    map[string]map[string]struct{}
	attempts map[string]int
}

// NewMemoryTracker creates an empty MemoryTracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		tried:    make(map[string]map[string]struct{}),
		attempts: make(map[string]int),
	}
}

// Tried reports whether candidate was already attempted for key.
func (t *MemoryTracker) Tried(key, candidate string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set, ok := t.tried[key]
	if !ok {
		return false
	}
	_, tried := set[candidate]
	return tried
}

// MarkTried records candidate as attempted for key.
func (t *MemoryTracker) MarkTried(key, candidate string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.tried[key]
	if !ok {
		set = make(map[string]struct{})
		t.tried[key] = set
	}
	set[candidate] = struct{}{}
}

// Attempts returns the number of fallback hops taken for key.
func (t *MemoryTracker) Attempts(key string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.attempts[key]
}

// IncrementAttempts bumps the hop count for key.
func (t *MemoryTracker) IncrementAttempts(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}

// Reset clears all tracked state for key.
func (t *MemoryTracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tried, key)
	delete(t.attempts, key)
}

// TriedCount returns how many candidates have been attempted for key.
func (t *MemoryTracker) TriedCount(key string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tried[key])
}

var _ Tracker = (*MemoryTracker)(nil)
