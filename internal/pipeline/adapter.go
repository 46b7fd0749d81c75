package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/timmy/cryptoetl/internal/backoff"
	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/drift"
	"github.com/timmy/cryptoetl/internal/fetch"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/source"
)

// Config holds the per-pipeline ETL settings.
type Config struct {
	MaxRetries         int // maximum fetch attempts
	RateLimitEnabled   bool
	CheckpointEnabled  bool
	CheckpointInterval int // records per load batch
	DriftEnabled       bool
}

// Adapter drives one source.Source through the pipeline contract.
type Adapter struct {
	src      source.Source
	store    Store
	backoff  *backoff.Controller
	detector *drift.Detector
	archive  Archiver
	limiter  *rate.Limiter
	cfg      Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithArchive copies every non-empty extraction to the archiver.
func WithArchive(a Archiver) Option {
	return func(ad *Adapter) { ad.archive = a }
}

// WithClock replaces the wall clock used to stamp last_updated.
func WithClock(now func() time.Time) Option {
	return func(ad *Adapter) { ad.now = now }
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(ad *Adapter) { ad.sleep = sleep }
}

// NewAdapter creates a pipeline for src.
// Parameters:
//   - src: per-source fetch and mapping.
//   - store: storage capability.
//   - bo: retry delay curve.
//   - detector: drift detector, used when cfg.DriftEnabled.
//   - cfg: retry, rate limit, checkpoint and drift settings.
//   - opts: optional archive, clock and sleep overrides.
//
// Returns:
//   - *Adapter: pipeline ready to Run.
func NewAdapter(src source.Source, store Store, bo *backoff.Controller, detector *drift.Detector, cfg Config, opts ...Option) *Adapter {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if bo == nil {
		bo = backoff.New(backoff.Config{})
	}
	if detector == nil {
		detector = drift.NewDetector(drift.DefaultThreshold)
	}

	a := &Adapter{
		src:      src,
		store:    store,
		backoff:  bo,
		detector: detector,
		cfg:      cfg,
		sleep:    sleepContext,
		now:      time.Now,
	}
	if rpm := src.RequestsPerMinute(); cfg.RateLimitEnabled && rpm > 0 {
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Source() string {
	return a.src.GetSourceID()
}

func (a *Adapter) ExpectedSchema() drift.Schema {
	return a.src.ExpectedSchema()
}

// Extract fetches raw items with rate limiting and backoff.
// An active checkpoint is reported in the Extraction but does not change what is fetched:
// every run writes a fresh snapshot stamped with its own last_updated.
func (a *Adapter) Extract(ctx context.Context) (*Extraction, error) {
	ctx = logger.SetStage(ctx, StageExtract)
	ext := &Extraction{}

	if a.cfg.CheckpointEnabled {
		cp, err := a.store.GetLastCheckpoint(ctx, a.Source())
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to read last checkpoint")
		} else if cp != nil {
			ext.Resumed = cp
			logger.FromContext(ctx).WithFields(logger.Fields{
				"checkpoint_id":     cp.ID,
				"records_processed": cp.RecordsProcessed,
			}).Info("Found incomplete checkpoint from a previous run")
		}
	}

	items, retries, err := a.fetchWithRetry(ctx)
	ext.Retries = retries
	if err != nil {
		return ext, err
	}
	ext.Items = items

	if a.archive != nil && len(items) > 0 {
		runID := logger.GetRunID(ctx)
		if runID == "" {
			runID = uuid.NewString()
		}
		if err := a.archive.ArchiveRaw(ctx, a.Source(), runID, items); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to archive raw extraction")
		}
	}

	return ext, nil
}

// fetchWithRetry runs up to MaxRetries attempts; retries is the number of backoff waits taken.
func (a *Adapter) fetchWithRetry(ctx context.Context) (items []map[string]any, retries int, err error) {
	for attempt := 0; ; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil, attempt, &ExtractionError{Source: a.Source(), Attempts: attempt, Err: err}
			}
		}

		items, err := a.src.Fetch(ctx)
		if err == nil {
			return items, attempt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempt, &ExtractionError{Source: a.Source(), Attempts: attempt + 1, Err: ctxErr}
		}
		if !fetch.IsRetryable(err) || attempt+1 >= a.cfg.MaxRetries {
			return nil, attempt, &ExtractionError{Source: a.Source(), Attempts: attempt + 1, Err: err}
		}

		delay := a.backoff.Delay(attempt)
		logger.With(logger.Fields{
			logger.FieldRetries: attempt + 1,
			logger.FieldDelayMs: delay.Milliseconds(),
			"rate_limited":      errors.Is(err, fetch.ErrRateLimited),
		}).Warn(ctx, "Fetch attempt failed, backing off: %v", err)

		if err := a.sleep(ctx, delay); err != nil {
			return nil, attempt + 1, &ExtractionError{Source: a.Source(), Attempts: attempt + 1, Err: err}
		}
	}
}

// Transform validates and maps raw items in input order. Every record of one call
// shares the same last_updated.
func (a *Adapter) Transform(ctx context.Context, raw []map[string]any) ([]domain.NormalizedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	ctx = logger.SetStage(ctx, StageTransform)

	if a.cfg.DriftEnabled {
		a.detectDrift(ctx, raw[0])
	}

	stamp := a.now().UTC().Truncate(time.Microsecond)
	records := make([]domain.NormalizedRecord, 0, len(raw))
	for i, item := range raw {
		q, err := a.src.Map(item)
		if err != nil {
			var dropped error = &TransformError{Source: a.Source(), Index: i, Err: err}
			if errors.Is(err, source.ErrInvalid) {
				dropped = &ValidationError{Source: a.Source(), Index: i, Err: err}
			}
			logger.FromContext(ctx).WithError(dropped).Warn("Dropping record")
			continue
		}

		records = append(records, domain.NormalizedRecord{
			Source:           a.Source(),
			Symbol:           strings.ToUpper(strings.TrimSpace(q.Symbol)),
			Name:             q.Name,
			PriceUSD:         q.PriceUSD,
			MarketCapUSD:     q.MarketCapUSD,
			Volume24hUSD:     q.Volume24hUSD,
			PercentChange24h: q.PercentChange24h,
			Rank:             q.Rank,
			LastUpdated:      stamp,
			RawPayload:       domain.JSONMap(item).Clone(),
		})
	}

	logger.With(logger.Fields{
		logger.FieldCount: len(records),
		"dropped":         len(raw) - len(records),
	}).Info(ctx, "Transformed records")

	return records, nil
}

func (a *Adapter) detectDrift(ctx context.Context, sample map[string]any) {
	report := a.detector.Detect(a.Source(), a.src.ExpectedSchema(), sample)
	if !report.HasDrift() {
		return
	}

	log := logger.FromContext(ctx).WithField("confidence", report.Confidence)
	log.WithField("summary", drift.Summary(report)).Warn("Schema drift detected")
	for _, w := range report.Warnings {
		log.Warnf("  - %s", w)
	}

	if err := a.store.LogSchemaDrift(ctx, report); err != nil {
		log.WithError(err).Error("Failed to log schema drift")
	}
}

// Load saves raw payloads best-effort, then writes records in checkpointed batches.
// A checkpoint is only written after its batch succeeded.
func (a *Adapter) Load(ctx context.Context, records []domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx = logger.SetStage(ctx, StageLoad)
	name := a.Source()

	payloads := make([]domain.JSONMap, len(records))
	ids := make([]string, len(records))
	for i := range records {
		payloads[i] = records[i].RawPayload
		ids[i] = records[i].Symbol
	}
	if err := a.store.SaveRaw(ctx, name, payloads, ids); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to save raw payloads")
	}

	interval := a.cfg.CheckpointInterval
	if interval <= 0 {
		interval = len(records)
	}

	for start := 0; start < len(records); start += interval {
		if err := ctx.Err(); err != nil {
			return &LoadError{Source: name, Processed: start, Err: err}
		}
		end := min(start+interval, len(records))

		if err := a.store.SaveNormalized(ctx, records[start:end]); err != nil {
			return &LoadError{Source: name, Processed: start, Err: err}
		}

		if a.cfg.CheckpointEnabled {
			marker := domain.JSONMap{domain.MarkerLastIndex: end}
			if err := a.store.SaveCheckpoint(ctx, name, marker, end); err != nil {
				return &LoadError{Source: name, Processed: end, Err: err}
			}
		}
		logger.CtxDebug(ctx, "Loaded batch %d-%d of %d", start, end, len(records))
	}

	if a.cfg.CheckpointEnabled {
		if err := a.store.MarkCheckpointCompleted(ctx, name); err != nil {
			return &LoadError{Source: name, Processed: len(records), Err: err}
		}
	}

	logger.With(logger.Fields{logger.FieldCount: len(records)}).Info(ctx, "Loaded records")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
