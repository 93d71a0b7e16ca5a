package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/community"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/monitoring"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
)

// SystemHandlers serves health, status and operational endpoints.
type SystemHandlers struct {
	conns    *connection.Manager
	cache    *cache.Manager
	metrics  *monitoring.Metrics
	bridge   *monitoring.Bridge
	breakers map[string]*resilience.Breaker
}

// NewSystemHandlers creates the system handler set.
func NewSystemHandlers(
	conns *connection.Manager,
	cacheMgr *cache.Manager,
	metrics *monitoring.Metrics,
	bridge *monitoring.Bridge,
	content *community.Content,
	messaging *community.Messaging,
	notifications *community.Notifications,
	profiles *community.Profiles,
) *SystemHandlers {
	return &SystemHandlers{
		conns:   conns,
		cache:   cacheMgr,
		metrics: metrics,
		bridge:  bridge,
		breakers: map[string]*resilience.Breaker{
			"content":       content.Breaker(),
			"messaging":     messaging.Breaker(),
			"notifications": notifications.Breaker(),
			"profiles":      profiles.Breaker(),
		},
	}
}

// SyncMetrics publishes the current snapshots to Prometheus. The server
// calls this on a ticker.
func (h *SystemHandlers) SyncMetrics() {
	h.bridge.SyncCache(h.cache.GetStats())
	h.bridge.SyncConnection(h.conns.GetStatus(), h.conns.GetMetrics())
	for name, b := range h.breakers {
		h.bridge.SyncBreaker(name, b.GetMetrics())
	}
}

// Root handles the liveness check
func (h *SystemHandlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Circle Gateway",
		"version": "0.3.0",
	})
}

// Health reports connection, cache and breaker health
func (h *SystemHandlers) Health(c *gin.Context) {
	status := h.conns.GetStatus()
	stats := h.cache.GetStats()

	breakers := make(gin.H, len(h.breakers))
	for name, b := range h.breakers {
		breakers[name] = b.State().String()
	}

	code := http.StatusOK
	if status.State == connection.StateOffline {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": string(status.State),
		"connection": gin.H{
			"state":           string(status.State),
			"needs_reconnect": status.NeedsReconnect,
		},
		"cache": gin.H{
			"entries":      stats.Entries,
			"hits":         stats.Hits,
			"misses":       stats.Misses,
			"stale_serves": stats.StaleServes,
		},
		"breakers": breakers,
	})
}

// Status reports aggregated request counters for dashboards
func (h *SystemHandlers) Status(c *gin.Context) {
	snap := h.metrics.GetSnapshot()

	avg := 0.0
	if snap.RequestCount > 0 {
		avg = snap.TotalDuration / float64(snap.RequestCount)
	}

	conn := h.conns.GetMetrics()

	c.JSON(http.StatusOK, gin.H{
		"requests": gin.H{
			"total":        snap.TotalRequests,
			"errors":       snap.TotalErrors,
			"avg_duration": avg,
		},
		"connection": gin.H{
			"recreates":         conn.Recreates,
			"skipped_recreates": conn.SkippedRecreates,
			"teardown_failures": conn.TeardownFailures,
		},
	})
}

// InvalidateCache drops cache entries matching a pattern
func (h *SystemHandlers) InvalidateCache(c *gin.Context) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.cache.Invalidate(req.Pattern)
	c.JSON(http.StatusOK, gin.H{"invalidated": true, "pattern": req.Pattern})
}

// RunRecovery re-runs registered revalidation hooks after an outage
func (h *SystemHandlers) RunRecovery(c *gin.Context) {
	if err := h.cache.RunRecovery(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"completed": true, "errors": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": true})
}

// Reconnect forces a client recreation, subject to the throttle
func (h *SystemHandlers) Reconnect(c *gin.Context) {
	if err := h.conns.RecreateClient(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconnected": true})
}
