package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
)

// Run executes extract, transform and load in order and logs a RunResult whatever the outcome.
// Parameters:
//   - ctx: run context; cancellation is honoured between stages and load batches.
//   - p: pipeline to run.
//   - runs: run log collaborator.
//
// Returns:
//   - *domain.RunResult: never nil, finished with an end time.
//   - error: the stage error, returned after it was logged.
func Run(ctx context.Context, p Pipeline, runs RunLogger) (*domain.RunResult, error) {
	result := &domain.RunResult{
		RunID:     uuid.NewString(),
		Source:    p.Source(),
		StartTime: time.Now().UTC(),
		Metadata:  domain.JSONMap{},
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldRunID:  result.RunID,
		logger.FieldSource: result.Source,
	})
	logger.CtxInfo(ctx, "Starting pipeline run")

	processed, err := execute(ctx, p, result.Metadata)

	result.Finish(time.Now().UTC())
	if err != nil {
		result.Status = domain.RunStatusFailed
		result.ErrorMessage = err.Error()
	} else {
		result.Status = domain.RunStatusSuccess
		result.RecordsProcessed = processed
	}

	if logErr := runs.LogRun(ctx, result); logErr != nil {
		logger.FromContext(ctx).WithError(logErr).Error("Failed to log run result")
	}

	duration, _ := result.Duration()
	entry := logger.With(logger.Fields{logger.FieldCount: result.RecordsProcessed}).
		WithDuration(duration).
		WithStatus(string(result.Status))
	if err != nil {
		entry.Error(ctx, "Pipeline run failed: %v", err)
	} else {
		entry.Info(ctx, "Pipeline run completed")
	}

	return result, err
}

func execute(ctx context.Context, p Pipeline, meta domain.JSONMap) (int, error) {
	started := time.Now()
	ext, err := p.Extract(ctx)
	meta[StageExtract+"_ms"] = time.Since(started).Milliseconds()
	if ext != nil {
		meta["retries"] = ext.Retries
		if idx, ok := ext.Resumed.LastIndex(); ok {
			meta["resumed_from"] = idx
		}
	}
	if err != nil {
		return 0, err
	}

	meta["raw_count"] = len(ext.Items)
	if len(ext.Items) == 0 {
		logger.CtxInfo(ctx, "No data extracted, skipping transform and load")
		return 0, nil
	}

	started = time.Now()
	records, err := p.Transform(ctx, ext.Items)
	meta[StageTransform+"_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		return 0, err
	}

	started = time.Now()
	err = p.Load(ctx, records)
	meta[StageLoad+"_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		return 0, err
	}

	return len(records), nil
}
