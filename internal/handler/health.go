package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pfcontrol/stripsync/internal/realtime"
)

// ReadyCheck reports whether a dependency is usable.
type ReadyCheck func(ctx context.Context) error

// HealthHandler handles health and ready checks.
type HealthHandler struct {
	hub    *realtime.Hub
	checks map[string]ReadyCheck
}

// NewHealthHandler creates a health handler. Every check must pass for /ready.
func NewHealthHandler(hub *realtime.Hub, checks map[string]ReadyCheck) *HealthHandler {
	return &HealthHandler{hub: hub, checks: checks}
}

// Health responds to GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "stripsync",
		"time":        time.Now().Unix(),
		"connections": h.hub.ClientCount(),
	})
}

// Ready responds to GET /ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
