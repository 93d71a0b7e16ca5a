package platform

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/circlehq/circle-go/internal/infrastructure/logging"
)

// Config holds platform client configuration.
type Config struct {
	// URL is the base URL of the hosted platform (https://...)
	URL string
	// Key is the API key, sent as both apikey header and bearer token
	Key string
	// Timeout bounds each REST request
	Timeout time.Duration
	// RetryMax is the number of automatic retries for transient HTTP failures
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the retry backoff
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HeartbeatInterval is the realtime ping cadence
	HeartbeatInterval time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout == 0 {
		out.Timeout = 15 * time.Second
	}
	if out.RetryMax == 0 {
		out.RetryMax = 2
	}
	if out.RetryWaitMin == 0 {
		out.RetryWaitMin = 250 * time.Millisecond
	}
	if out.RetryWaitMax == 0 {
		out.RetryWaitMax = 2 * time.Second
	}
	if out.HeartbeatInterval == 0 {
		out.HeartbeatInterval = 30 * time.Second
	}
	return out
}

// Client is one handle to the remote platform: a REST transport plus a
// realtime connection. It is shared read-only between recreations.
type Client struct {
	cfg      Config
	rest     *resty.Client
	realtime *Realtime
	logger   *logging.Logger
}

// New constructs a client handle. The realtime transport is not dialed here;
// call Realtime().Connect when a live change feed is needed.
func New(cfg Config, logger *logging.Logger) (*Client, error) {
	cfg = cfg.withDefaults()

	if cfg.URL == "" {
		return nil, fmt.Errorf("platform: URL is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("platform: invalid URL: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	// Transient HTTP failures retry with backoff below the resty layer.
	retrying := retryablehttp.NewClient()
	retrying.RetryMax = cfg.RetryMax
	retrying.RetryWaitMin = cfg.RetryWaitMin
	retrying.RetryWaitMax = cfg.RetryWaitMax
	retrying.Logger = nil

	rest := resty.NewWithClient(retrying.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.Key).
		SetAuthToken(cfg.Key).
		SetHeader("Accept", "application/json")

	rt := newRealtime(realtimeURL(cfg.URL, cfg.Key), cfg.HeartbeatInterval, logger.Component("realtime"))

	return &Client{
		cfg:      cfg,
		rest:     rest,
		realtime: rt,
		logger:   logger,
	}, nil
}

// Realtime returns the realtime transport of this handle.
func (c *Client) Realtime() *Realtime {
	return c.realtime
}

// RemoveChannel leaves and forgets a realtime channel.
func (c *Client) RemoveChannel(ch *Channel) {
	c.realtime.RemoveChannel(ch)
}

// Close releases both transports. The handle is unusable afterwards.
func (c *Client) Close() error {
	return c.realtime.Disconnect()
}

// realtimeURL derives the websocket endpoint from the platform base URL.
func realtimeURL(base, key string) string {
	u := strings.TrimRight(base, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/realtime/v1/websocket?apikey=" + url.QueryEscape(key)
}
