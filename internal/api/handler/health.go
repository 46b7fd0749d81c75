package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
)

// HealthChecker reports database reachability and the newest run.
type HealthChecker interface {
	Ping(ctx context.Context) error
	LastRun(ctx context.Context) (*domain.RunResult, error)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health returns 200 when the database answers, 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.checker.Ping(ctx); err != nil {
		logger.CtxWarn(ctx, "Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unreachable",
			"error":    err.Error(),
		})
		return
	}

	resp := gin.H{
		"status":   "ok",
		"database": "ok",
	}
	if last, err := h.checker.LastRun(ctx); err == nil && last != nil {
		resp["last_run"] = gin.H{
			"run_id":     last.RunID,
			"source":     last.Source,
			"status":     last.Status,
			"start_time": last.StartTime.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, resp)
}
