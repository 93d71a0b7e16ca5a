// Package main is the entry point for the Circle gateway.
//
// This application fronts the hosted platform for the Circle web community,
// adding the resiliency the browser clients depend on: per-service circuit
// breakers, a stale-while-revalidate cache, and a managed platform
// connection that survives network churn.
//
// Architecture:
//
//	Frontend (browser) → Gateway → Hosted platform (REST + realtime)
//
// The gateway provides:
//   - REST API for posts, comments, messaging, notifications and profiles
//   - WebSocket streaming of platform change events
//   - Circuit breakers with fallbacks per community service
//   - Stale-while-revalidate caching with realtime invalidation
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML overlay file (-config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	PLATFORM_URL=https://xyz.example.co PLATFORM_KEY=... ./gateway -port 8000
//
//	# With a config file
//	./gateway -config /etc/circle/gateway.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
