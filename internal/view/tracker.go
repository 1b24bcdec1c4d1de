package view

import "sync"

// Tracker holds the latest result of one view. Every fetch takes a generation
// from Begin; a result is only stored if no newer fetch has been started since
// and nothing newer was stored already.
type Tracker[T any] struct {
	// publishMu orders deliveries; mu guards the counters and never waits on it
	publishMu sync.Mutex
	mu        sync.Mutex
	issued    uint64
	committed uint64
	value     T
	has       bool
}

// NewTracker returns an empty tracker.
func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{}
}

// Begin starts a new fetch and supersedes all earlier ones.
func (t *Tracker[T]) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return t.issued
}

// Current reports whether gen is still the newest fetch.
func (t *Tracker[T]) Current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.issued
}

// Commit stores value for gen and reports whether it was accepted.
func (t *Tracker[T]) Commit(gen uint64, value T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.issued || gen <= t.committed {
		return false
	}
	t.committed = gen
	t.value = value
	t.has = true
	return true
}

// Publish commits value for gen and, when accepted, runs deliver before any
// later generation can commit. A result is never delivered after a newer one.
func (t *Tracker[T]) Publish(gen uint64, value T, deliver func(T)) bool {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	if !t.Commit(gen, value) {
		return false
	}
	deliver(value)
	return true
}

// IfCurrent runs fn if gen is still the newest fetch, ordered with Publish.
func (t *Tracker[T]) IfCurrent(gen uint64, fn func()) bool {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	if !t.Current(gen) {
		return false
	}
	fn()
	return true
}

// Latest returns the stored value and the generation that produced it.
func (t *Tracker[T]) Latest() (T, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.committed, t.has
}

// Registry keys trackers by view, e.g. one per screen and session.
type Registry[T any] struct {
	mu       sync.Mutex
	trackers map[string]*Tracker[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{trackers: make(map[string]*Tracker[T])}
}

// For returns the tracker of key, creating it on first use.
func (r *Registry[T]) For(key string) *Tracker[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[key]
	if !ok {
		t = NewTracker[T]()
		r.trackers[key] = t
	}
	return t
}

// Forget drops the tracker of key.
func (r *Registry[T]) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, key)
}

// Len number of tracked views
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}
