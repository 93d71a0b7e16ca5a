package cache

import (
	"strings"
	"time"
)

// Scope identifies a cached resource family as a (domain, resource) pair,
// e.g. {content, list}. Keys built from a scope look like
// "content:list:{params}".
type Scope struct {
	Domain   string
	Resource string
}

// Prefix returns the key prefix for the scope.
func (s Scope) Prefix() string {
	return s.Domain + ":" + s.Resource
}

// Key builds a full cache key for the scope with a parameter suffix.
func (s Scope) Key(params string) string {
	return s.Prefix() + ":" + params
}

// Policy controls freshness behavior for one scope.
type Policy struct {
	// TTL is how long an entry counts as fresh
	TTL time.Duration
	// StaleWhileRevalidate serves expired entries immediately while a
	// background refresh runs
	StaleWhileRevalidate bool
	// Realtime subscribes the scope's domain to the platform change feed
	// and drops the domain's entries on any change event
	Realtime bool
}

// DefaultPolicies is the policy table the community services rely on.
// Unknown scopes fall back to caller-supplied overrides only.
func DefaultPolicies() map[Scope]Policy {
	return map[Scope]Policy{
		{Domain: "content", Resource: "list"}:          {TTL: 2 * time.Minute, StaleWhileRevalidate: true, Realtime: true},
		{Domain: "content", Resource: "post"}:          {TTL: 5 * time.Minute, StaleWhileRevalidate: true, Realtime: true},
		{Domain: "content", Resource: "comments"}:      {TTL: 1 * time.Minute, StaleWhileRevalidate: true, Realtime: true},
		{Domain: "messages", Resource: "threads"}:      {TTL: 30 * time.Second, StaleWhileRevalidate: true, Realtime: true},
		{Domain: "messages", Resource: "list"}:         {TTL: 15 * time.Second, StaleWhileRevalidate: true, Realtime: true},
		{Domain: "notifications", Resource: "list"}:    {TTL: 30 * time.Second, StaleWhileRevalidate: true, Realtime: true},
		{Domain: "profiles", Resource: "profile"}:      {TTL: 10 * time.Minute, StaleWhileRevalidate: true, Realtime: false},
		{Domain: "profiles", Resource: "achievements"}: {TTL: 30 * time.Minute, StaleWhileRevalidate: false, Realtime: false},
		{Domain: "profiles", Resource: "activity"}:     {TTL: 2 * time.Minute, StaleWhileRevalidate: true, Realtime: false},
	}
}

// resolvePolicy finds the policy whose scope prefixes the key. Unknown keys
// get the caller override, or a zero policy (always stale, no realtime).
func resolvePolicy(policies map[Scope]Policy, key string, override *Policy) Policy {
	if override != nil {
		return *override
	}
	for scope, p := range policies {
		if strings.HasPrefix(key, scope.Prefix()+":") || key == scope.Prefix() {
			return p
		}
	}
	return Policy{}
}

// domainOf extracts the leading domain segment of a key.
func domainOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
