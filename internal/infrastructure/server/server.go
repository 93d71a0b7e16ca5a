package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/circlehq/circle-go/internal/api/http"
	"github.com/circlehq/circle-go/internal/api/middleware"
	"github.com/circlehq/circle-go/internal/api/ws"
	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/community"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/config"
	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/infrastructure/monitoring"
	"github.com/circlehq/circle-go/internal/infrastructure/tracing"
	"github.com/circlehq/circle-go/internal/platform"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	conns   *connection.Manager
	cache   *cache.Manager
	system  *apihttp.SystemHandlers
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	stop chan struct{}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing Circle Gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("platform_url", cfg.Platform.URL),
	)

	if cfg.Platform.URL == "" {
		return nil, fmt.Errorf("platform URL is required (set PLATFORM_URL)")
	}

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	bridge := monitoring.NewBridge(metrics)
	logger.Info("Performance monitoring initialized")

	// Initialize distributed tracing
	tracer := tracing.New("gateway", logger.Logger)
	logger.Info("Distributed tracing initialized")

	// Connection lifecycle: one client handle, recreated on transport death
	factory := func(ctx context.Context) (*platform.Client, error) {
		return platform.New(platform.Config{
			URL:               cfg.Platform.URL,
			Key:               cfg.Platform.Key,
			Timeout:           cfg.Platform.Timeout,
			RetryMax:          cfg.Platform.RetryMax,
			HeartbeatInterval: cfg.Platform.Heartbeat,
		}, logger.Component("platform"))
	}

	conns, err := connection.NewManager(context.Background(), factory, connection.Config{
		BackgroundDisconnectDelay: cfg.Connection.BackgroundDisconnectDelay,
		RecreateMinInterval:       cfg.Connection.RecreateMinInterval,
	}, logger.Component("connection"))
	if err != nil {
		return nil, fmt.Errorf("failed to create platform client: %w", err)
	}

	// Stale-while-revalidate cache over the platform
	cacheMgr, err := cache.NewManager(cache.Config{
		MaxEntries:     cfg.Cache.MaxEntries,
		RefreshTimeout: cfg.Cache.RefreshTimeout,
	}, conns, logger.Component("cache"))
	if err != nil {
		conns.Destroy()
		return nil, fmt.Errorf("failed to create cache manager: %w", err)
	}

	// Community services
	svcCfg := community.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		Metrics:          metrics,
		Tracer:           tracer,
	}
	content := community.NewContent(conns, cacheMgr, svcCfg, logger.Component("content"))
	messaging := community.NewMessaging(conns, cacheMgr, svcCfg, logger.Component("messaging"))
	notifications := community.NewNotifications(conns, cacheMgr, svcCfg, logger.Component("notifications"))
	profiles := community.NewProfiles(conns, cacheMgr, svcCfg, logger.Component("profiles"))

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := apihttp.NewHandlers(content, messaging, notifications, profiles)
	system := apihttp.NewSystemHandlers(conns, cacheMgr, metrics, bridge, content, messaging, notifications, profiles)
	wsHandler := ws.NewHandler(conns, metrics, logger.Component("ws"))

	// Register routes
	router.GET("/", system.Root)
	router.GET("/health", system.Health)
	router.GET("/status", system.Status)

	// Content
	router.GET("/feed", handlers.Feed)
	router.POST("/posts", handlers.CreatePost)
	router.GET("/posts/:id", handlers.GetPost)
	router.GET("/posts/:id/comments", handlers.ListComments)
	router.POST("/posts/:id/comments", handlers.AddComment)
	router.POST("/posts/:id/like", handlers.Like)
	router.POST("/posts/:id/unlike", handlers.Unlike)

	// Messaging
	router.GET("/users/:userId/conversations", handlers.ListConversations)
	router.GET("/conversations/:id/messages", handlers.ListMessages)
	router.POST("/conversations/:id/messages", handlers.SendMessage)

	// Notifications and profiles
	router.GET("/users/:userId/notifications", handlers.ListNotifications)
	router.POST("/users/:userId/notifications/seen", handlers.MarkNotificationsSeen)
	router.GET("/users/:userId/profile", handlers.GetProfile)
	router.PATCH("/users/:userId/profile", handlers.UpdateProfile)
	router.GET("/users/:userId/achievements", handlers.ListAchievements)
	router.GET("/users/:userId/activity", handlers.ActivityFeed)

	// Operational endpoints
	router.POST("/system/cache/invalidate", system.InvalidateCache)
	router.POST("/system/recovery", system.RunRecovery)
	router.POST("/system/reconnect", system.Reconnect)

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s := &Server{
		router:  router,
		conns:   conns,
		cache:   cacheMgr,
		system:  system,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		stop:    make(chan struct{}),
	}

	go s.watchLiveness()
	go s.syncMetrics()

	logger.Info("Gateway initialized successfully")
	return s, nil
}

// Handler exposes the router, mainly for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down gateway...")
	close(s.stop)

	s.cache.Destroy()
	s.conns.Destroy()

	// Sync logger before exit
	s.logger.Sync()
	return nil
}

// watchLiveness polls the platform's REST root and feeds network up and down
// signals into the connection manager. A failed probe means the network (or
// the platform) is unreachable; the first success afterwards triggers
// recreation of a dead transport.
func (s *Server) watchLiveness() {
	interval := s.config.Connection.LivenessInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	target := s.config.Platform.LivenessURL
	if target == "" {
		target = s.config.Platform.URL + "/rest/v1/"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasUp := true
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			up := probe(client, target, s.config.Platform.Key)
			switch {
			case up && !wasUp:
				s.logger.Info("network restored")
				s.conns.HandleNetworkUp(context.Background())
			case !up && wasUp:
				s.logger.Warn("network lost", zap.String("target", target))
				s.conns.HandleNetworkDown()
			case up:
				// Steady state; still let the manager repair a transport
				// that died between probes.
				s.conns.HandleNetworkUp(context.Background())
			}
			wasUp = up
		}
	}
}

func probe(client *http.Client, target, key string) bool {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	req.Header.Set("apikey", key)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// syncMetrics publishes cache, connection and breaker snapshots on a ticker.
func (s *Server) syncMetrics() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.system.SyncMetrics()
		}
	}
}
