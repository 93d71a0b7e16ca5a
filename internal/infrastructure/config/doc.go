// Package config provides 12-factor configuration management for the gateway.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML file can be overlaid on top for deployment-specific overrides.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Platform: hosted platform endpoint, credentials and timeouts
//   - Connection: client lifecycle tuning (background disconnect, throttle)
//   - Cache: stale-while-revalidate cache sizing
//   - Breaker: circuit breaker thresholds
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Gateway running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, PLATFORM_URL, PLATFORM_KEY
//   - CONN_BG_DISCONNECT_DELAY, CONN_RECREATE_MIN_INTERVAL
//   - CACHE_MAX_ENTRIES, BREAKER_FAILURE_THRESHOLD
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
