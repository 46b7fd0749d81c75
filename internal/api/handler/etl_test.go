package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/orchestrator"
	"github.com/timmy/cryptoetl/internal/repository"
)

type fakeRunner struct {
	sources []string
	fail    bool
	block   chan struct{}
}

func (f *fakeRunner) RunFull(context.Context) *orchestrator.Summary {
	if f.block != nil {
		<-f.block
	}
	return &orchestrator.Summary{Status: orchestrator.StatusSuccess, TotalRecords: 7, Order: f.sources}
}

func (f *fakeRunner) RunSingle(_ context.Context, name string) (*domain.RunResult, error) {
	known := false
	for _, s := range f.sources {
		known = known || s == name
	}
	if !known {
		return nil, &orchestrator.UnknownSourceError{Source: name}
	}
	result := &domain.RunResult{RunID: "r-1", Source: name, Status: domain.RunStatusSuccess, RecordsProcessed: 3}
	if f.fail {
		result.Status = domain.RunStatusFailed
		return result, errors.New("extract failed")
	}
	return result, nil
}

func (f *fakeRunner) Sources() []string { return f.sources }

type fakeReporter struct {
	lastSource string
	lastLimit  int
}

func (f *fakeReporter) Stats(context.Context) (*repository.Stats, error) {
	return &repository.Stats{RecordsBySource: map[string]int64{"csv": 5}, TotalRecords: 5}, nil
}

func (f *fakeReporter) RecentRuns(_ context.Context, source string, limit int) ([]domain.RunResult, error) {
	f.lastSource, f.lastLimit = source, limit
	return []domain.RunResult{{RunID: "r-1", Source: "csv", Status: domain.RunStatusSuccess}}, nil
}

func (f *fakeReporter) RecentDrift(_ context.Context, source string, limit int) ([]domain.SchemaDriftReport, error) {
	f.lastSource, f.lastLimit = source, limit
	return nil, nil
}

func newTestEngine(h *ETLHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/stats", h.Stats)
	r.GET("/runs", h.Runs)
	r.GET("/drift", h.Drift)
	r.GET("/status", h.Status)
	r.POST("/run", h.RunAll)
	r.POST("/run/:source", h.RunSource)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRunSource(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		fail     bool
		wantCode int
	}{
		{name: "known source", source: "csv", wantCode: http.StatusOK},
		{name: "unknown source", source: "kraken", wantCode: http.StatusNotFound},
		{name: "failed run", source: "csv", fail: true, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewETLHandler(&fakeRunner{sources: []string{"csv"}, fail: tt.fail}, &fakeReporter{})
			w := do(newTestEngine(h), http.MethodPost, "/run/"+tt.source)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.False(t, h.isRunning)
		})
	}
}

func TestRunAllReturnsSummary(t *testing.T) {
	h := NewETLHandler(&fakeRunner{sources: []string{"csv", "coingecko"}}, &fakeReporter{})
	r := newTestEngine(h)

	w := do(r, http.MethodPost, "/run")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 7, body["total_records"])

	w = do(r, http.MethodGet, "/status")
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.IsRunning)
	assert.Equal(t, "success", status.LastRunStatus)
	assert.Equal(t, []string{"csv", "coingecko"}, status.Sources)
}

func TestRunAllRejectsConcurrentTrigger(t *testing.T) {
	runner := &fakeRunner{sources: []string{"csv"}, block: make(chan struct{})}
	h := NewETLHandler(runner, &fakeReporter{})
	r := newTestEngine(h)

	done := make(chan int)
	go func() { done <- do(r, http.MethodPost, "/run").Code }()

	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.isRunning
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/run/csv").Code)

	close(runner.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestTriggerFullSharesRunningGuard(t *testing.T) {
	runner := &fakeRunner{sources: []string{"csv"}, block: make(chan struct{})}
	h := NewETLHandler(runner, &fakeReporter{})
	r := newTestEngine(h)

	type triggered struct {
		summary *orchestrator.Summary
		ok      bool
	}
	done := make(chan triggered)
	go func() {
		summary, ok := h.TriggerFull(context.Background())
		done <- triggered{summary, ok}
	}()

	require.Eventually(t, func() bool {
		var status StatusResponse
		w := do(r, http.MethodGet, "/status")
		return json.Unmarshal(w.Body.Bytes(), &status) == nil && status.IsRunning
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/run").Code)
	_, ok := h.TriggerFull(context.Background())
	assert.False(t, ok)

	close(runner.block)
	got := <-done
	require.True(t, got.ok)
	assert.Equal(t, orchestrator.StatusSuccess, got.summary.Status)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(do(r, http.MethodGet, "/status").Body.Bytes(), &status))
	assert.False(t, status.IsRunning)
	assert.Equal(t, "success", status.LastRunStatus)
}

func TestListEndpointsParseLimit(t *testing.T) {
	rep := &fakeReporter{}
	r := newTestEngine(NewETLHandler(&fakeRunner{}, rep))

	w := do(r, http.MethodGet, "/runs?source=csv&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", rep.lastSource)
	assert.Equal(t, 5, rep.lastLimit)

	do(r, http.MethodGet, "/drift?limit=10000")
	assert.Equal(t, maxListLimit, rep.lastLimit)

	do(r, http.MethodGet, "/drift")
	assert.Equal(t, defaultListLimit, rep.lastLimit)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/runs?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/runs?limit=0").Code)
}

func TestStats(t *testing.T) {
	r := newTestEngine(NewETLHandler(&fakeRunner{}, &fakeReporter{}))

	w := do(r, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats repository.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 5, stats.RecordsBySource["csv"])
}
