package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck pings one dependency.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks  []ReadinessCheck
	timeout time.Duration
	now     func() time.Time

	shuttingDown atomic.Bool
}

// create a new instance of the health handler
func NewHealthHandler(checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: time.Second,
		now:     time.Now,
	}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health mirrors Healthz with a timestamp for uptime checks.
func (h *HealthHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.now().UTC(),
	})
}

// MarkShuttingDown makes Readyz fail so load balancers drain this instance
// before the listener closes.
func (h *HealthHandler) MarkShuttingDown() {
	h.shuttingDown.Store(true)
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.shuttingDown.Load() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
		return
	}

	failed := gin.H{}

	for _, check := range h.checks {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
		err := check.Ping(cctx)
		cancel()

		if err != nil {
			failed[check.Name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": failed,
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
