package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/platform"
)

// Entry is one cached value with its storage time. Age decides freshness
// against the resolved policy's TTL.
type Entry struct {
	Value     interface{}
	Timestamp time.Time
}

// Fetcher loads a value from the platform on miss or refresh.
type Fetcher func(ctx context.Context) (interface{}, error)

// Config tunes the cache manager.
type Config struct {
	// MaxEntries bounds the store; least recently used entries evict first
	MaxEntries int
	// Policies maps scopes to freshness behavior; nil uses DefaultPolicies
	Policies map[Scope]Policy
	// RefreshTimeout bounds one background revalidation
	RefreshTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxEntries == 0 {
		out.MaxEntries = 1024
	}
	if out.Policies == nil {
		out.Policies = DefaultPolicies()
	}
	if out.RefreshTimeout == 0 {
		out.RefreshTimeout = 15 * time.Second
	}
	return out
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int
	Hits          uint64
	Misses        uint64
	StaleServes   uint64
	Invalidations uint64
}

// domainSub binds one realtime subscription to a cache domain.
type domainSub struct {
	domain  string
	channel *platform.Channel
	cancel  func()
}

// Manager is a keyed stale-while-revalidate cache with realtime-driven
// invalidation. One background refresh per key runs at a time; change events
// on a subscribed domain drop that domain's entries wholesale.
type Manager struct {
	cfg    Config
	conns  *connection.Manager
	logger *logging.Logger

	mu      sync.Mutex
	store   *lru.Cache[string, Entry]
	pending map[string]struct{}
	subs    map[string]*domainSub

	revalidators map[string]func(context.Context) error

	unwatch func()

	hits          uint64
	misses        uint64
	staleServes   uint64
	invalidations uint64
}

// NewManager builds a cache manager. conns supplies the realtime substrate
// and may be nil, which disables realtime invalidation entirely.
func NewManager(cfg Config, conns *connection.Manager, logger *logging.Logger) (*Manager, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := lru.New[string, Entry](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:          cfg,
		conns:        conns,
		logger:       logger,
		store:        store,
		pending:      make(map[string]struct{}),
		subs:         make(map[string]*domainSub),
		revalidators: make(map[string]func(context.Context) error),
	}

	if conns != nil {
		m.unwatch = conns.OnClientChange(m.resubscribe)
	}

	return m, nil
}

// Get returns the value under key, consulting the fetcher as the resolved
// policy demands: fresh hits return immediately; stale hits under
// stale-while-revalidate return the stale value and schedule exactly one
// background refresh; misses await the fetcher. A fetcher failure is
// swallowed whenever any cached value exists; the stale value wins over the
// error.
func (m *Manager) Get(ctx context.Context, key string, fetcher Fetcher, override *Policy) (interface{}, error) {
	policy := resolvePolicy(m.cfg.Policies, key, override)

	m.mu.Lock()
	entry, ok := m.store.Get(key)
	if ok {
		age := time.Since(entry.Timestamp)
		if age <= policy.TTL {
			m.hits++
			m.mu.Unlock()
			return entry.Value, nil
		}

		if policy.StaleWhileRevalidate {
			m.staleServes++
			if _, inflight := m.pending[key]; !inflight {
				m.pending[key] = struct{}{}
				go m.refresh(key, fetcher)
			}
			m.mu.Unlock()
			return entry.Value, nil
		}
	} else {
		m.misses++
	}
	m.mu.Unlock()

	value, err := fetcher(ctx)
	if err != nil {
		if ok {
			m.logger.Warn("fetch failed, serving stale value",
				zap.String("key", key), zap.Error(err))
			return entry.Value, nil
		}
		return nil, err
	}

	m.put(key, value, policy)
	return value, nil
}

// Set stores value under key. Realtime-enabled scopes lazily ensure a
// subscription for their domain; repeated calls never double-subscribe.
func (m *Manager) Set(key string, value interface{}, override *Policy) {
	policy := resolvePolicy(m.cfg.Policies, key, override)
	m.put(key, value, policy)
}

// Invalidate drops entries. With a pattern, every key containing the pattern
// (or matching it as a glob) is removed along with realtime subscriptions
// for matching domains; with an empty pattern everything goes.
func (m *Manager) Invalidate(pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pattern == "" {
		m.invalidations += uint64(m.store.Len())
		m.store.Purge()
		for _, sub := range m.subs {
			m.teardownSubLocked(sub)
		}
		return
	}

	for _, key := range m.store.Keys() {
		if keyMatches(key, pattern) {
			m.store.Remove(key)
			m.invalidations++
		}
	}
	for _, sub := range m.subs {
		if keyMatches(sub.domain, pattern) {
			m.teardownSubLocked(sub)
		}
	}
}

// RegisterRevalidation adds a named recovery callback, replacing any prior
// callback under the same name.
func (m *Manager) RegisterRevalidation(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revalidators[name] = fn
}

// UnregisterRevalidation removes a named recovery callback.
func (m *Manager) UnregisterRevalidation(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revalidators, name)
}

// RunRecovery fires on return from a prolonged background period: every
// registered revalidation callback runs, failures collected so one bad
// callback never starves the rest, then expired entries in realtime
// stale-while-revalidate scopes are swept out.
func (m *Manager) RunRecovery(ctx context.Context) error {
	m.mu.Lock()
	revalidators := make(map[string]func(context.Context) error, len(m.revalidators))
	for name, fn := range m.revalidators {
		revalidators[name] = fn
	}
	m.mu.Unlock()

	var errs error
	for name, fn := range revalidators {
		if err := fn(ctx); err != nil {
			m.logger.Warn("revalidation callback failed",
				zap.String("name", name), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	m.mu.Lock()
	for _, key := range m.store.Keys() {
		policy := resolvePolicy(m.cfg.Policies, key, nil)
		if !policy.Realtime || !policy.StaleWhileRevalidate {
			continue
		}
		if entry, ok := m.store.Peek(key); ok && time.Since(entry.Timestamp) > policy.TTL {
			m.store.Remove(key)
			m.invalidations++
		}
	}
	m.mu.Unlock()

	return errs
}

// GetStats returns a snapshot of cache counters.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Entries:       m.store.Len(),
		Hits:          m.hits,
		Misses:        m.misses,
		StaleServes:   m.staleServes,
		Invalidations: m.invalidations,
	}
}

// Destroy tears down subscriptions and the client-change watch and empties
// the store.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unwatch != nil {
		m.unwatch()
		m.unwatch = nil
	}
	for _, sub := range m.subs {
		m.teardownSubLocked(sub)
	}
	m.store.Purge()
	m.revalidators = make(map[string]func(context.Context) error)
}

// put stores the entry and ensures the domain subscription when the policy
// wants realtime invalidation.
func (m *Manager) put(key string, value interface{}, policy Policy) {
	m.mu.Lock()
	m.store.Add(key, Entry{Value: value, Timestamp: time.Now()})
	needSub := policy.Realtime && m.conns != nil
	domain := domainOf(key)
	_, subscribed := m.subs[domain]
	m.mu.Unlock()

	if needSub && !subscribed {
		m.subscribe(domain, m.conns.GetClient())
	}
}

// refresh is the single in-flight background revalidation for key.
func (m *Manager) refresh(key string, fetcher Fetcher) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
	defer cancel()

	value, err := fetcher(ctx)

	m.mu.Lock()
	delete(m.pending, key)
	if err == nil {
		m.store.Add(key, Entry{Value: value, Timestamp: time.Now()})
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("background refresh failed, keeping stale entry",
			zap.String("key", key), zap.Error(err))
	}
}

// subscribe binds a realtime channel for the domain. Change events are
// treated as opaque triggers: the whole domain's entries drop.
func (m *Manager) subscribe(domain string, client *platform.Client) {
	ch := client.Realtime().Channel("realtime:" + domain)
	cancel := ch.Subscribe(platform.Filter{}, func(evt platform.Event) {
		m.invalidateDomain(domain)
	})

	m.mu.Lock()
	if _, ok := m.subs[domain]; ok {
		// Lost the race with a concurrent subscribe; keep the first.
		m.mu.Unlock()
		cancel()
		return
	}
	m.subs[domain] = &domainSub{domain: domain, channel: ch, cancel: cancel}
	m.mu.Unlock()

	m.logger.Debug("realtime invalidation bound", zap.String("domain", domain))
}

// invalidateDomain drops every entry under the domain prefix.
func (m *Manager) invalidateDomain(domain string) {
	prefix := domain + ":"

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.store.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.store.Remove(key)
			m.invalidations++
		}
	}
}

// resubscribe re-establishes every domain subscription against a replacement
// client handle. The old handle's channels died with it.
func (m *Manager) resubscribe(client *platform.Client) {
	m.mu.Lock()
	domains := make([]string, 0, len(m.subs))
	for domain, sub := range m.subs {
		domains = append(domains, domain)
		sub.cancel()
	}
	m.subs = make(map[string]*domainSub)
	m.mu.Unlock()

	for _, domain := range domains {
		m.subscribe(domain, client)
	}
	if len(domains) > 0 {
		m.logger.Info("realtime subscriptions re-established",
			zap.Int("domains", len(domains)))
	}
}

// teardownSubLocked cancels one subscription and forgets it. Caller holds
// the lock.
func (m *Manager) teardownSubLocked(sub *domainSub) {
	sub.cancel()
	delete(m.subs, sub.domain)
}

// keyMatches implements Invalidate's pattern semantics: substring match,
// with glob patterns (*, **, ?) honored when present.
func keyMatches(key, pattern string) bool {
	if strings.ContainsAny(pattern, "*?[") {
		ok, err := doublestar.Match(pattern, key)
		return err == nil && ok
	}
	return strings.Contains(key, pattern)
}
