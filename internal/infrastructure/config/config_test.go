package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Platform config
	assert.Equal(t, 15*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, 2, cfg.Platform.RetryMax)

	// Connection config
	assert.Equal(t, 5*time.Minute, cfg.Connection.BackgroundDisconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.Connection.RecreateMinInterval)

	// Cache config
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)

	// Breaker config
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 2, cfg.Breaker.SuccessThreshold)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                       "9000",
		"HOST":                       "127.0.0.1",
		"PLATFORM_URL":               "https://platform.example.com",
		"PLATFORM_KEY":               "secret",
		"PLATFORM_TIMEOUT":           "5s",
		"CONN_BG_DISCONNECT_DELAY":   "1m",
		"CONN_RECREATE_MIN_INTERVAL": "2s",
		"CACHE_MAX_ENTRIES":          "256",
		"BREAKER_FAILURE_THRESHOLD":  "7",
		"LOG_LEVEL":                  "debug",
		"LOG_DEV":                    "true",
		"RATE_LIMIT_RPS":             "500",
		"RATE_LIMIT_BURST":           "1000",
		"RATE_LIMIT_ENABLED":         "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://platform.example.com", cfg.Platform.URL)
	assert.Equal(t, "secret", cfg.Platform.Key)
	assert.Equal(t, 5*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, time.Minute, cfg.Connection.BackgroundDisconnectDelay)
	assert.Equal(t, 2*time.Second, cfg.Connection.RecreateMinInterval)
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
	assert.Equal(t, 7, cfg.Breaker.FailureThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
}

func TestLoadFileOverlaysEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("PLATFORM_URL", "https://env.example.com")

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
server:
  port: "4000"
cache:
  max_entries: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// File wins where it speaks, environment holds elsewhere.
	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, "https://env.example.com", cfg.Platform.URL)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConnectionConfig(t *testing.T) {
	tests := []struct {
		name      string
		delay     string
		interval  string
		wantDelay time.Duration
		wantMin   time.Duration
	}{
		{
			name:      "default values",
			wantDelay: 5 * time.Minute,
			wantMin:   5 * time.Second,
		},
		{
			name:      "short background delay",
			delay:     "30s",
			wantDelay: 30 * time.Second,
			wantMin:   5 * time.Second,
		},
		{
			name:      "aggressive throttle",
			interval:  "500ms",
			wantDelay: 5 * time.Minute,
			wantMin:   500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.delay != "" {
				t.Setenv("CONN_BG_DISCONNECT_DELAY", tt.delay)
			}
			if tt.interval != "" {
				t.Setenv("CONN_RECREATE_MIN_INTERVAL", tt.interval)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantDelay, cfg.Connection.BackgroundDisconnectDelay)
			assert.Equal(t, tt.wantMin, cfg.Connection.RecreateMinInterval)
		})
	}
}

func TestBreakerConfig(t *testing.T) {
	tests := []struct {
		name      string
		failures  string
		reset     string
		wantFail  int
		wantReset time.Duration
	}{
		{
			name:      "default values",
			wantFail:  3,
			wantReset: 10 * time.Second,
		},
		{
			name:      "looser threshold",
			failures:  "10",
			wantFail:  10,
			wantReset: 10 * time.Second,
		},
		{
			name:      "longer cooldown",
			reset:     "1m",
			wantFail:  3,
			wantReset: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.failures != "" {
				t.Setenv("BREAKER_FAILURE_THRESHOLD", tt.failures)
			}
			if tt.reset != "" {
				t.Setenv("BREAKER_RESET_TIMEOUT", tt.reset)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantFail, cfg.Breaker.FailureThreshold)
			assert.Equal(t, tt.wantReset, cfg.Breaker.ResetTimeout)
		})
	}
}
