package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks request outcomes per endpoint (e.g. "states", "districts", "fra_parcels")
// and, separately, responses discarded per fetch category (e.g. "districts", "dataset").
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*EndpointStats
	stale map[string]*int64
}

// EndpointStats holds counters for one endpoint.
// Fields are accessed atomically.
type EndpointStats struct {
	Success  int64
	Failures int64
	NotFound int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*EndpointStats),
		stale: make(map[string]*int64),
	}
}

// getStats returns the stats object for an endpoint, creating it if needed.
func (t *Tracker) getStats(endpoint string) *EndpointStats {
	t.mu.RLock()
	s, ok := t.stats[endpoint]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[endpoint]; ok {
		return s
	}
	s = &EndpointStats{}
	t.stats[endpoint] = s
	return s
}

// TrackSuccess increments the success counter.
func (t *Tracker) TrackSuccess(endpoint string) {
	atomic.AddInt64(&t.getStats(endpoint).Success, 1)
}

func (t *Tracker) TrackFailure(endpoint string) {
	atomic.AddInt64(&t.getStats(endpoint).Failures, 1)
}

func (t *Tracker) TrackNotFound(endpoint string) {
	atomic.AddInt64(&t.getStats(endpoint).NotFound, 1)
}

// TrackStale counts a response of a fetch category that a newer request superseded.
// Categories are kept apart from endpoints; one category may span several endpoints.
func (t *Tracker) TrackStale(category string) {
	t.mu.RLock()
	n, ok := t.stale[category]
	t.mu.RUnlock()
	if !ok {
		t.mu.Lock()
		if n, ok = t.stale[category]; !ok {
			n = new(int64)
			t.stale[category] = n
		}
		t.mu.Unlock()
	}
	atomic.AddInt64(n, 1)
}

// StaleSnapshot returns a copy of the discarded-response counters per category.
func (t *Tracker) StaleSnapshot() map[string]int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]int64, len(t.stale))
	for k, v := range t.stale {
		result[k] = atomic.LoadInt64(v)
	}
	return result
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]EndpointStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]EndpointStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = EndpointStats{
			Success:  atomic.LoadInt64(&v.Success),
			Failures: atomic.LoadInt64(&v.Failures),
			NotFound: atomic.LoadInt64(&v.NotFound),
		}
	}
	return result
}

// Reset zeroes all counters but keeps the known endpoints and categories.
func (t *Tracker) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, v := range t.stats {
		atomic.StoreInt64(&v.Success, 0)
		atomic.StoreInt64(&v.Failures, 0)
		atomic.StoreInt64(&v.NotFound, 0)
	}
	for _, n := range t.stale {
		atomic.StoreInt64(n, 0)
	}
}
