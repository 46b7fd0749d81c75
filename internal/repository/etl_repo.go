package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/cryptoetl/internal/domain"
)

const defaultBatchSize = 100

// ETLRepository persists raw and normalized records, checkpoints, runs and drift reports.
// It implements pipeline.Store and is safe for concurrent use.
type ETLRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewETLRepository creates a new ETLRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//   - batchSize: rows per INSERT statement; zero means 100.
//
// Returns:
//   - *ETLRepository: repository instance bound to db.
func NewETLRepository(db *gorm.DB, batchSize int) *ETLRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ETLRepository{db: db, batchSize: batchSize}
}

// Ping checks database connectivity.
func (r *ETLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveRaw inserts one raw row per item.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: source name.
//   - items: raw payloads.
//   - ids: source-side identifiers aligned with items; may be shorter.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *ETLRepository) SaveRaw(ctx context.Context, source string, items []domain.JSONMap, ids []string) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.RawRecord, len(items))
	for i, item := range items {
		rows[i] = domain.RawRecord{Source: source, Payload: item, IngestedAt: now}
		if i < len(ids) {
			rows[i].SourceID = ids[i]
		}
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, r.batchSize).Error
}

// SaveNormalized inserts a batch keyed by (source, symbol, last_updated); existing keys are left untouched.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batch: normalized records; the slice is not modified.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *ETLRepository) SaveNormalized(ctx context.Context, batch []domain.NormalizedRecord) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]domain.NormalizedRecord, len(batch))
	for i := range batch {
		rows[i] = batch[i]
		rows[i].ID = 0
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "symbol"}, {Name: "last_updated"}},
		DoNothing: true,
	}).CreateInBatches(rows, r.batchSize).Error
}

// SaveCheckpoint records progress for source as a new active checkpoint.
func (r *ETLRepository) SaveCheckpoint(ctx context.Context, source string, marker domain.JSONMap, processed int) error {
	cp := &domain.Checkpoint{
		Source:           source,
		Marker:           marker,
		RecordsProcessed: processed,
	}
	return r.db.WithContext(ctx).Create(cp).Error
}

// GetLastCheckpoint returns the most recent non-completed checkpoint for source.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: source name.
//
// Returns:
//   - *domain.Checkpoint: active checkpoint, or nil when none exists.
//   - error: non-nil if the lookup fails.
func (r *ETLRepository) GetLastCheckpoint(ctx context.Context, source string) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := r.db.WithContext(ctx).
		Where("source = ? AND completed = ?", source, false).
		Order("id DESC").
		First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// MarkCheckpointCompleted completes every open checkpoint of source.
func (r *ETLRepository) MarkCheckpointCompleted(ctx context.Context, source string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Checkpoint{}).
		Where("source = ? AND completed = ?", source, false).
		Update("completed", true).Error
}

// LogRun upserts a run by RunID, so logging the same run twice keeps one row.
func (r *ETLRepository) LogRun(ctx context.Context, run *domain.RunResult) error {
	if run == nil {
		return nil
	}
	row := *run
	if row.Metadata == nil {
		row.Metadata = domain.JSONMap{}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// LogSchemaDrift stores a drift report.
func (r *ETLRepository) LogSchemaDrift(ctx context.Context, report *domain.SchemaDriftReport) error {
	if report == nil {
		return nil
	}
	row := *report
	row.ID = 0
	return r.db.WithContext(ctx).Create(&row).Error
}

// RecentRuns lists runs newest first, optionally filtered by source.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: source name; empty lists every source.
//   - limit: maximum rows returned.
//
// Returns:
//   - []domain.RunResult: runs ordered by start time descending.
//   - error: non-nil if the query fails.
func (r *ETLRepository) RecentRuns(ctx context.Context, source string, limit int) ([]domain.RunResult, error) {
	q := r.db.WithContext(ctx).Order("start_time DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var runs []domain.RunResult
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// LastRun returns the newest run of any status, or nil when no run was logged.
func (r *ETLRepository) LastRun(ctx context.Context) (*domain.RunResult, error) {
	return r.lastRun(ctx, r.db.WithContext(ctx))
}

// LastSuccess returns the newest successful run, or nil.
func (r *ETLRepository) LastSuccess(ctx context.Context) (*domain.RunResult, error) {
	return r.lastRun(ctx, r.db.WithContext(ctx).Where("status = ?", domain.RunStatusSuccess))
}

func (r *ETLRepository) lastRun(_ context.Context, q *gorm.DB) (*domain.RunResult, error) {
	var run domain.RunResult
	err := q.Order("start_time DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentDrift lists drift reports newest first, optionally filtered by source.
func (r *ETLRepository) RecentDrift(ctx context.Context, source string, limit int) ([]domain.SchemaDriftReport, error) {
	q := r.db.WithContext(ctx).Order("detected_at DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var reports []domain.SchemaDriftReport
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// Stats summarises stored data for the reporting API.
type Stats struct {
	RecordsBySource map[string]int64  `json:"records_by_source"`
	TotalRecords    int64             `json:"total_records"`
	RawRecords      int64             `json:"raw_records"`
	TotalRuns       int64             `json:"total_runs"`
	FailedRuns      int64             `json:"failed_runs"`
	LastRun         *domain.RunResult `json:"last_run,omitempty"`
	LastSuccess     *domain.RunResult `json:"last_success,omitempty"`
}

// Stats counts records per source and runs by status.
func (r *ETLRepository) Stats(ctx context.Context) (*Stats, error) {
	db := r.db.WithContext(ctx)
	stats := &Stats{RecordsBySource: map[string]int64{}}

	var perSource []struct {
		Source string
		Count  int64
	}
	if err := db.Model(&domain.NormalizedRecord{}).
		Select("source, COUNT(*) AS count").
		Group("source").
		Scan(&perSource).Error; err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	for _, row := range perSource {
		stats.RecordsBySource[row.Source] = row.Count
		stats.TotalRecords += row.Count
	}

	if err := db.Model(&domain.RawRecord{}).Count(&stats.RawRecords).Error; err != nil {
		return nil, fmt.Errorf("count raw records: %w", err)
	}
	if err := db.Model(&domain.RunResult{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	if err := db.Model(&domain.RunResult{}).Where("status = ?", domain.RunStatusFailed).Count(&stats.FailedRuns).Error; err != nil {
		return nil, fmt.Errorf("count failed runs: %w", err)
	}

	var err error
	if stats.LastRun, err = r.LastRun(ctx); err != nil {
		return nil, err
	}
	if stats.LastSuccess, err = r.LastSuccess(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}
