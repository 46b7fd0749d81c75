package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/orchestrator"
	"github.com/timmy/cryptoetl/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Runner triggers pipeline runs.
type Runner interface {
	RunFull(ctx context.Context) *orchestrator.Summary
	RunSingle(ctx context.Context, name string) (*domain.RunResult, error)
	Sources() []string
}

// Reporter reads stored ETL state.
type Reporter interface {
	Stats(ctx context.Context) (*repository.Stats, error)
	RecentRuns(ctx context.Context, source string, limit int) ([]domain.RunResult, error)
	RecentDrift(ctx context.Context, source string, limit int) ([]domain.SchemaDriftReport, error)
}

// ETLHandler serves run triggers and reporting endpoints.
type ETLHandler struct {
	runner   Runner
	reporter Reporter

	// one trigger at a time
	mu            sync.RWMutex
	isRunning     bool
	lastRunTime   time.Time
	lastRunStatus string
}

// NewETLHandler creates a new ETL handler.
// Parameters:
//   - runner: orchestrator used for triggered runs.
//   - reporter: repository used for reporting queries.
//
// Returns:
//   - *ETLHandler: initialized handler.
func NewETLHandler(runner Runner, reporter Reporter) *ETLHandler {
	return &ETLHandler{runner: runner, reporter: reporter}
}

// StatusResponse represents the trigger state.
type StatusResponse struct {
	IsRunning     bool     `json:"is_running"`
	LastRunTime   string   `json:"last_run_time,omitempty"`
	LastRunStatus string   `json:"last_run_status,omitempty"`
	Sources       []string `json:"sources"`
}

// Stats handles GET /api/v1/stats.
func (h *ETLHandler) Stats(c *gin.Context) {
	stats, err := h.reporter.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Runs handles GET /api/v1/runs?source=&limit=.
func (h *ETLHandler) Runs(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	runs, err := h.reporter.RecentRuns(c.Request.Context(), c.Query("source"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// Drift handles GET /api/v1/drift?source=&limit=.
func (h *ETLHandler) Drift(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	reports, err := h.reporter.RecentDrift(c.Request.Context(), c.Query("source"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list drift reports: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   len(reports),
	})
}

// Status handles GET /api/v1/etl/status.
func (h *ETLHandler) Status(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := StatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		Sources:       h.runner.Sources(),
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// TriggerFull runs every pipeline under the same guard as the HTTP triggers.
// ok is false when another run is already in progress.
func (h *ETLHandler) TriggerFull(ctx context.Context) (summary *orchestrator.Summary, ok bool) {
	if !h.begin() {
		return nil, false
	}
	defer func() {
		status := ""
		if summary != nil {
			status = string(summary.Status)
		}
		h.finish(status)
	}()
	return h.runner.RunFull(ctx), true
}

// RunAll handles POST /api/v1/etl/run and blocks until every pipeline finished.
func (h *ETLHandler) RunAll(c *gin.Context) {
	ctx := c.Request.Context()

	logger.CtxInfo(ctx, "Triggered full ETL run: client_ip=%s", c.ClientIP())
	// the run outlives a dropped client connection
	summary, ok := h.TriggerFull(context.WithoutCancel(ctx))
	if !ok {
		logger.CtxWarn(ctx, "ETL run rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "ETL run is already in progress"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RunSource handles POST /api/v1/etl/run/:source.
func (h *ETLHandler) RunSource(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("source")

	if !h.begin() {
		logger.CtxWarn(ctx, "ETL run rejected: already running, source=%s", name)
		c.JSON(http.StatusConflict, gin.H{"error": "ETL run is already in progress"})
		return
	}

	logger.CtxInfo(ctx, "Triggered ETL run: source=%s, client_ip=%s", name, c.ClientIP())
	result, err := h.runner.RunSingle(context.WithoutCancel(ctx), name)

	var unknown *orchestrator.UnknownSourceError
	switch {
	case errors.As(err, &unknown):
		h.finish("")
		c.JSON(http.StatusNotFound, gin.H{"error": unknown.Error()})
	case err != nil:
		h.finish(string(domain.RunStatusFailed))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"result": result,
		})
	default:
		h.finish(string(result.Status))
		c.JSON(http.StatusOK, result)
	}
}

func (h *ETLHandler) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isRunning {
		return false
	}
	h.isRunning = true
	return true
}

// finish clears the running flag; an empty status leaves the last run untouched.
func (h *ETLHandler) finish(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isRunning = false
	if status != "" {
		h.lastRunTime = time.Now()
		h.lastRunStatus = status
	}
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'limit' must be a positive integer"})
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
