package monitoring

import (
	"sync"

	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
)

// Bridge periodically copies the resilience, cache and connection snapshot
// counters into Prometheus metrics. The sources keep their own monotonic
// counters, so the bridge records only the delta since the last sync.
type Bridge struct {
	metrics *Metrics

	mu         sync.Mutex
	lastCache  cache.Stats
	lastConn   connection.Metrics
	lastStates map[string]resilience.State
}

// NewBridge creates a snapshot bridge bound to a metrics collector.
func NewBridge(metrics *Metrics) *Bridge {
	return &Bridge{
		metrics:    metrics,
		lastStates: make(map[string]resilience.State),
	}
}

// SyncCache publishes one cache stats snapshot.
func (b *Bridge) SyncCache(stats cache.Stats) {
	b.mu.Lock()
	prev := b.lastCache
	b.lastCache = stats
	b.mu.Unlock()

	b.metrics.CacheEntries.Set(float64(stats.Entries))
	addDelta(b.metrics.CacheHits, prev.Hits, stats.Hits)
	addDelta(b.metrics.CacheMisses, prev.Misses, stats.Misses)
	addDelta(b.metrics.CacheStaleServes, prev.StaleServes, stats.StaleServes)
	addDelta(b.metrics.CacheInvalidations, prev.Invalidations, stats.Invalidations)
}

// SyncConnection publishes one lifecycle metrics snapshot.
func (b *Bridge) SyncConnection(status connection.Status, metrics connection.Metrics) {
	b.mu.Lock()
	prev := b.lastConn
	b.lastConn = metrics
	b.mu.Unlock()

	b.metrics.SetConnectionOnline(status.State == connection.StateOnline)
	addDelta(b.metrics.ClientRecreates, prev.Recreates, metrics.Recreates)
	addDelta(b.metrics.RecreatesSkipped, prev.SkippedRecreates, metrics.SkippedRecreates)
	addDelta(b.metrics.TeardownFailures, prev.TeardownFailures, metrics.TeardownFailures)
}

// SyncBreaker publishes one breaker snapshot under its name. A transition
// into the open state since the last sync counts as a trip.
func (b *Bridge) SyncBreaker(name string, m resilience.Metrics) {
	b.metrics.SetBreakerState(name, stateValue(m.State))

	b.mu.Lock()
	prev, seen := b.lastStates[name]
	b.lastStates[name] = m.State
	b.mu.Unlock()

	if seen && prev != resilience.StateOpen && m.State == resilience.StateOpen {
		b.metrics.IncBreakerTrips(name)
	}
}

func stateValue(s resilience.State) int {
	switch s {
	case resilience.StateClosed:
		return 0
	case resilience.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

type counter interface {
	Add(float64)
}

func addDelta(c counter, prev, cur uint64) {
	if cur > prev {
		c.Add(float64(cur - prev))
	}
}

// GetSnapshot returns the JSON API snapshot of request counters.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
