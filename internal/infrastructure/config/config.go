package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Platform   PlatformConfig   `yaml:"platform"`
	Connection ConnectionConfig `yaml:"connection"`
	Cache      CacheConfig      `yaml:"cache"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Logging    LogConfig        `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// PlatformConfig holds the hosted platform endpoint and credentials.
type PlatformConfig struct {
	URL         string        `envconfig:"PLATFORM_URL" yaml:"url"`
	Key         string        `envconfig:"PLATFORM_KEY" yaml:"key"`
	Timeout     time.Duration `envconfig:"PLATFORM_TIMEOUT" default:"15s" yaml:"timeout"`
	RetryMax    int           `envconfig:"PLATFORM_RETRY_MAX" default:"2" yaml:"retry_max"`
	Heartbeat   time.Duration `envconfig:"PLATFORM_HEARTBEAT" default:"30s" yaml:"heartbeat"`
	LivenessURL string        `envconfig:"PLATFORM_LIVENESS_URL" yaml:"liveness_url"`
}

// ConnectionConfig holds client lifecycle configuration.
type ConnectionConfig struct {
	BackgroundDisconnectDelay time.Duration `envconfig:"CONN_BG_DISCONNECT_DELAY" default:"5m" yaml:"background_disconnect_delay"`
	RecreateMinInterval       time.Duration `envconfig:"CONN_RECREATE_MIN_INTERVAL" default:"5s" yaml:"recreate_min_interval"`
	LivenessInterval          time.Duration `envconfig:"CONN_LIVENESS_INTERVAL" default:"30s" yaml:"liveness_interval"`
}

// CacheConfig holds cache manager configuration.
type CacheConfig struct {
	MaxEntries     int           `envconfig:"CACHE_MAX_ENTRIES" default:"1024" yaml:"max_entries"`
	RefreshTimeout time.Duration `envconfig:"CACHE_REFRESH_TIMEOUT" default:"15s" yaml:"refresh_timeout"`
}

// BreakerConfig holds circuit breaker thresholds shared by the services.
type BreakerConfig struct {
	FailureThreshold int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"3" yaml:"failure_threshold"`
	SuccessThreshold int           `envconfig:"BREAKER_SUCCESS_THRESHOLD" default:"2" yaml:"success_threshold"`
	ResetTimeout     time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"10s" yaml:"reset_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then overlays a YAML
// file on top. File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Platform: PlatformConfig{
			Timeout:   15 * time.Second,
			RetryMax:  2,
			Heartbeat: 30 * time.Second,
		},
		Connection: ConnectionConfig{
			BackgroundDisconnectDelay: 5 * time.Minute,
			RecreateMinInterval:       5 * time.Second,
			LivenessInterval:          30 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries:     1024,
			RefreshTimeout: 15 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 2,
			ResetTimeout:     10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
