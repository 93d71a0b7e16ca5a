// Package community provides typed access to the platform's community
// tables: posts, comments, likes, messaging, notifications, profiles,
// achievements and activity feeds.
//
// Each service composes the client core the same way: reads go through the
// stale-while-revalidate cache with a per-service circuit breaker guarding
// the fetch, writes go straight through the breaker and invalidate the
// affected cache domain. Business rules (visibility, counters, fan-out) live
// on the platform; these services only shape requests and decode rows.
package community
