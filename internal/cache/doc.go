// Package cache provides a keyed stale-while-revalidate cache with
// realtime-driven invalidation.
//
// Keys follow a "domain:resource:params" shape and resolve against a typed
// policy table of (domain, resource) scopes. Each policy sets a TTL, whether
// stale entries may be served while a background refresh runs, and whether
// the domain subscribes to the platform's change feed.
//
// Freshness model:
//   - fresh hit: the cached value returns immediately
//   - stale hit with stale-while-revalidate: the stale value returns
//     immediately and exactly one background refresh runs per key
//   - miss: the fetcher is awaited and its result stored
//   - fetcher failure with any cached value: the stale value returns and the
//     error is only logged
//
// Realtime invalidation is coarse on purpose: any change event for a
// subscribed domain drops the whole domain's entries. The platform has no
// cache-tag cooperation, so per-entry diffing would trade correctness for
// little gain; a redundant refetch is the accepted cost. Subscriptions are
// re-established automatically whenever the connection lifecycle manager
// replaces the client handle.
package cache
