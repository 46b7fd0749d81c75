package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/pipeline"
)

var _ pipeline.Store = (*ETLRepository)(nil)

func newTestRepo(t *testing.T) *ETLRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "etl.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewETLRepository(db, 2)
}

func quote(symbol string, at time.Time) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		Source:      "csv",
		Symbol:      symbol,
		Name:        symbol,
		PriceUSD:    decimal.RequireFromString("45000.5"),
		Rank:        1,
		LastUpdated: at,
		RawPayload:  domain.JSONMap{"symbol": symbol},
	}
}

func TestSaveNormalizedIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	batch := []domain.NormalizedRecord{quote("BTC", at), quote("ETH", at), quote("SOL", at)}
	require.NoError(t, repo.SaveNormalized(ctx, batch))
	require.NoError(t, repo.SaveNormalized(ctx, batch))
	require.NoError(t, repo.SaveNormalized(ctx, []domain.NormalizedRecord{quote("BTC", at.Add(time.Minute))}))

	assert.Zero(t, batch[0].ID, "caller slice is not modified")

	var count int64
	require.NoError(t, repo.db.Model(&domain.NormalizedRecord{}).Count(&count).Error)
	assert.EqualValues(t, 4, count)

	var stored domain.NormalizedRecord
	require.NoError(t, repo.db.Where("symbol = ?", "ETH").First(&stored).Error)
	assert.True(t, stored.PriceUSD.Equal(decimal.RequireFromString("45000.5")))
	assert.Equal(t, "ETH", stored.RawPayload["symbol"])
}

func TestSaveRaw(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	items := []domain.JSONMap{{"symbol": "BTC"}, {"symbol": "ETH"}, {"symbol": "BNB"}}
	require.NoError(t, repo.SaveRaw(ctx, "csv", items, []string{"BTC", "ETH", "BNB"}))

	var rows []domain.RawRecord
	require.NoError(t, repo.db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, "ETH", rows[1].SourceID)
	assert.Equal(t, "BNB", rows[2].Payload["symbol"])
}

func TestCheckpointLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cp, err := repo.GetLastCheckpoint(ctx, "coingecko")
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, repo.SaveCheckpoint(ctx, "coingecko", domain.JSONMap{domain.MarkerLastIndex: 50}, 50))
	require.NoError(t, repo.SaveCheckpoint(ctx, "coingecko", domain.JSONMap{domain.MarkerLastIndex: 100}, 100))
	require.NoError(t, repo.SaveCheckpoint(ctx, "csv", domain.JSONMap{domain.MarkerLastIndex: 5}, 5))

	cp, err = repo.GetLastCheckpoint(ctx, "coingecko")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 100, cp.RecordsProcessed)
	idx, ok := cp.LastIndex()
	assert.True(t, ok)
	assert.Equal(t, 100, idx)

	require.NoError(t, repo.MarkCheckpointCompleted(ctx, "coingecko"))

	cp, err = repo.GetLastCheckpoint(ctx, "coingecko")
	require.NoError(t, err)
	assert.Nil(t, cp)

	cp, err = repo.GetLastCheckpoint(ctx, "csv")
	require.NoError(t, err)
	require.NotNil(t, cp, "other sources keep their active checkpoint")
}

func TestLogRunUpserts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := &domain.RunResult{
		RunID:     "7d1e2f9a-0000-4000-8000-000000000001",
		Source:    "csv",
		Status:    domain.RunStatusSuccess,
		StartTime: time.Now().UTC().Add(-time.Second),
		Metadata:  domain.JSONMap{"raw_count": 5},
	}
	run.RecordsProcessed = 5
	run.Finish(time.Now().UTC())

	require.NoError(t, repo.LogRun(ctx, run))
	require.NoError(t, repo.LogRun(ctx, run))

	runs, err := repo.RecentRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 5, runs[0].RecordsProcessed)
	require.NotNil(t, runs[0].DurationSeconds)

	failed := &domain.RunResult{
		RunID:        "7d1e2f9a-0000-4000-8000-000000000002",
		Source:       "coingecko",
		Status:       domain.RunStatusFailed,
		StartTime:    time.Now().UTC(),
		ErrorMessage: "extract coingecko failed after 3 attempt(s): rate limited",
	}
	failed.Finish(time.Now().UTC())
	require.NoError(t, repo.LogRun(ctx, failed))

	last, err := repo.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, failed.RunID, last.RunID)

	success, err := repo.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, success.RunID)
}

func TestDriftAndStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.LogSchemaDrift(ctx, &domain.SchemaDriftReport{
		Source:     "coinpaprika",
		DetectedAt: at,
		Confidence: 0.8,
		Warnings:   domain.StringArray{"Possible field rename: 'quotes' -> 'quote' (confidence: 0.91)"},
		Renames:    domain.JSONMap{"quotes": "quote"},
	}))

	reports, err := repo.RecentDrift(ctx, "coinpaprika", 5)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "quote", reports[0].Renames["quotes"])
	assert.Len(t, reports[0].Warnings, 1)

	require.NoError(t, repo.SaveNormalized(ctx, []domain.NormalizedRecord{quote("BTC", at), quote("ETH", at)}))
	require.NoError(t, repo.SaveRaw(ctx, "csv", []domain.JSONMap{{"symbol": "BTC"}}, []string{"BTC"}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRecords)
	assert.EqualValues(t, 2, stats.RecordsBySource["csv"])
	assert.EqualValues(t, 1, stats.RawRecords)
	assert.Zero(t, stats.TotalRuns)
	assert.Nil(t, stats.LastRun)

	require.NoError(t, repo.Ping(ctx))
}
