package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/pipeline"
)

// Status is the overall outcome of a full run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
	StatusFailed         Status = "failed"
)

// Summary aggregates one full run. Sources and FailedSources follow registration order.
type Summary struct {
	Status          Status                       `json:"status"`
	TotalRecords    int                          `json:"total_records"`
	StartTime       time.Time                    `json:"start_time"`
	EndTime         time.Time                    `json:"end_time"`
	Duration        time.Duration                `json:"-"`
	DurationSeconds float64                      `json:"duration_seconds"`
	Order           []string                     `json:"order"`
	Sources         map[string]*domain.RunResult `json:"sources"`
	FailedSources   []string                     `json:"failed_sources"`
}

// UnknownSourceError is returned by RunSingle for a name that was never registered.
type UnknownSourceError struct {
	Source string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source: %s", e.Source)
}

// Config bounds concurrency and per-pipeline run time.
type Config struct {
	Workers    int
	RunTimeout time.Duration // zero disables the deadline
}

// Orchestrator owns the pipeline registry and runs pipelines.
type Orchestrator struct {
	mu        sync.RWMutex
	pipelines []pipeline.Pipeline
	index     map[string]int

	runs pipeline.RunLogger
	cfg  Config
}

// New creates an Orchestrator.
// Parameters:
//   - runs: run log collaborator shared by every pipeline.
//   - cfg: worker limit and run timeout.
//
// Returns:
//   - *Orchestrator: empty registry.
func New(runs pipeline.RunLogger, cfg Config) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		index: make(map[string]int),
		runs:  runs,
		cfg:   cfg,
	}
}

// Register appends p to the registry. Names must be unique.
func (o *Orchestrator) Register(p pipeline.Pipeline) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := p.Source()
	if _, exists := o.index[name]; exists {
		return fmt.Errorf("pipeline %q already registered", name)
	}
	o.index[name] = len(o.pipelines)
	o.pipelines = append(o.pipelines, p)
	return nil
}

// Sources returns registered names in registration order.
func (o *Orchestrator) Sources() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, len(o.pipelines))
	for i, p := range o.pipelines {
		names[i] = p.Source()
	}
	return names
}

type outcome struct {
	index  int
	result *domain.RunResult
	err    error
}

// RunFull runs every registered pipeline, at most Workers at a time.
// A failing pipeline never stops its siblings; aggregation is by registration order.
func (o *Orchestrator) RunFull(ctx context.Context) *Summary {
	o.mu.RLock()
	pipelines := append([]pipeline.Pipeline(nil), o.pipelines...)
	o.mu.RUnlock()

	ctx = logger.SetComponent(ctx, "orchestrator")
	summary := &Summary{
		StartTime: time.Now().UTC(),
		Sources:   make(map[string]*domain.RunResult, len(pipelines)),
	}
	logger.With(logger.Fields{logger.FieldCount: len(pipelines)}).Info(ctx, "Starting full ETL run")

	outcomes := make(chan outcome, len(pipelines))
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i, p := range pipelines {
		i, p := i, p
		g.Go(func() error {
			result, err := o.runOne(ctx, p)
			outcomes <- outcome{index: i, result: result, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	ordered := make([]outcome, len(pipelines))
	for out := range outcomes {
		ordered[out.index] = out
	}

	for i, out := range ordered {
		name := pipelines[i].Source()
		summary.Order = append(summary.Order, name)
		summary.Sources[name] = out.result
		if out.err != nil || !out.result.Succeeded() {
			summary.FailedSources = append(summary.FailedSources, name)
			continue
		}
		summary.TotalRecords += out.result.RecordsProcessed
	}

	switch failed := len(summary.FailedSources); {
	case failed == 0:
		summary.Status = StatusSuccess
	case failed < len(pipelines):
		summary.Status = StatusPartialFailure
	default:
		summary.Status = StatusFailed
	}

	summary.EndTime = time.Now().UTC()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	summary.DurationSeconds = summary.Duration.Seconds()

	logger.With(logger.Fields{
		logger.FieldCount: summary.TotalRecords,
		"failed_sources":  summary.FailedSources,
	}).WithDuration(summary.Duration).WithStatus(string(summary.Status)).Info(ctx, "Full ETL run finished")

	return summary
}

// RunSingle runs one named pipeline and logs its result again; RunID makes the second write idempotent.
func (o *Orchestrator) RunSingle(ctx context.Context, name string) (*domain.RunResult, error) {
	o.mu.RLock()
	i, ok := o.index[name]
	var p pipeline.Pipeline
	if ok {
		p = o.pipelines[i]
	}
	o.mu.RUnlock()

	if !ok {
		return nil, &UnknownSourceError{Source: name}
	}

	ctx = logger.SetComponent(ctx, "orchestrator")
	result, err := o.runOne(ctx, p)
	if logErr := o.runs.LogRun(ctx, result); logErr != nil {
		logger.FromContext(ctx).WithError(logErr).Error("Failed to log run result")
	}
	return result, err
}

// runOne applies the run deadline and turns a panic into a failed result.
func (o *Orchestrator) runOne(ctx context.Context, p pipeline.Pipeline) (result *domain.RunResult, err error) {
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline %s panicked: %v", p.Source(), r)
			result = &domain.RunResult{
				RunID:        uuid.NewString(),
				Source:       p.Source(),
				Status:       domain.RunStatusFailed,
				StartTime:    start,
				ErrorMessage: err.Error(),
			}
			result.Finish(time.Now().UTC())
			logger.FromContext(ctx).WithField(logger.FieldSource, p.Source()).Error(err.Error())
			if logErr := o.runs.LogRun(ctx, result); logErr != nil {
				logger.FromContext(ctx).WithError(logErr).Error("Failed to log run result")
			}
		}
	}()

	return pipeline.Run(ctx, p, o.runs)
}
