package pipeline

import (
	"context"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/drift"
)

// Stage names used in logs and run metadata.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// Pipeline is the extract/transform/load contract of one source.
type Pipeline interface {
	// Source returns the registered pipeline name.
	Source() string

	// Extract fetches raw items. On failure the returned Extraction still carries retry counts.
	Extract(ctx context.Context) (*Extraction, error)

	// Transform maps raw items to normalized records, dropping invalid ones.
	// The output never has more records than the input.
	Transform(ctx context.Context, raw []map[string]any) ([]domain.NormalizedRecord, error)

	// Load persists raw payloads and normalized records with checkpoints.
	Load(ctx context.Context, records []domain.NormalizedRecord) error

	// ExpectedSchema returns the declared field layout consumed by drift detection.
	ExpectedSchema() drift.Schema
}

// Extraction is the outcome of Extract.
type Extraction struct {
	Items []map[string]any
	// Retries counts backoff waits before the final attempt.
	Retries int
	// Resumed is the active checkpoint found before fetching, if any.
	Resumed *domain.Checkpoint
}

// Checkpointer records and reads load progress per source.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, source string, marker domain.JSONMap, processed int) error
	// GetLastCheckpoint returns the active checkpoint, or nil when there is none.
	GetLastCheckpoint(ctx context.Context, source string) (*domain.Checkpoint, error)
	MarkCheckpointCompleted(ctx context.Context, source string) error
}

// RunLogger persists run outcomes. Logging the same RunID twice must be idempotent.
type RunLogger interface {
	LogRun(ctx context.Context, run *domain.RunResult) error
}

// DriftLogger persists drift reports.
type DriftLogger interface {
	LogSchemaDrift(ctx context.Context, report *domain.SchemaDriftReport) error
}

// Store is the storage capability a pipeline needs. Implementations must tolerate
// concurrent calls for different sources.
type Store interface {
	Checkpointer
	RunLogger
	DriftLogger

	SaveRaw(ctx context.Context, source string, items []domain.JSONMap, ids []string) error
	// SaveNormalized inserts a batch; rows whose (source, symbol, last_updated) already exist are skipped.
	SaveNormalized(ctx context.Context, batch []domain.NormalizedRecord) error
}

// Archiver copies a raw extraction somewhere outside the database.
type Archiver interface {
	ArchiveRaw(ctx context.Context, source, runID string, items []map[string]any) error
}
