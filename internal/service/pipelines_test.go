package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/orchestrator"
	"github.com/timmy/cryptoetl/internal/repository"
)

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestSourcesFollowsEnabledFlags(t *testing.T) {
	cfg := &config.SourcesConfig{
		CoinPaprika: config.CoinPaprikaConfig{Enabled: true, RequestsPerMinute: 25},
		CoinGecko:   config.CoinGeckoConfig{Enabled: false},
		CSV:         config.CSVConfig{Enabled: true, Path: "coins.csv"},
	}

	sources := Sources(cfg)

	require.Len(t, sources, 2)
	assert.Equal(t, "coinpaprika", sources[0].GetSourceID())
	assert.Equal(t, 25, sources[0].RequestsPerMinute())
	assert.Equal(t, "csv", sources[1].GetSourceID())
}

func TestBuildOrchestratorRequiresASource(t *testing.T) {
	cfg := loadConfig(t, `
sources:
  coinpaprika: {enabled: false}
  coingecko: {enabled: false}
  csv: {enabled: false}
`)
	_, err := BuildOrchestrator(cfg, nil, nil)
	assert.ErrorContains(t, err, "no sources enabled")
}

func TestCSVPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(t, `
database:
  driver: sqlite
  path: `+filepath.Join(dir, "etl.db")+`
  log_level: silent
checkpoint:
  interval: 2
sources:
  coinpaprika: {enabled: false}
  coingecko: {enabled: false}
  csv:
    enabled: true
    create_sample: true
    path: `+filepath.Join(dir, "data", "coins.csv")+`
`)

	db, err := repository.InitDB(&cfg.Database)
	require.NoError(t, err)
	repo := repository.NewETLRepository(db, cfg.ETL.BatchSize)

	orch, err := BuildOrchestrator(cfg, repo, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"csv"}, orch.Sources())

	ctx := context.Background()
	summary := orch.RunFull(ctx)
	require.Equal(t, orchestrator.StatusSuccess, summary.Status, summary.Sources["csv"].ErrorMessage)
	assert.Equal(t, 5, summary.TotalRecords)
	assert.FileExists(t, filepath.Join(dir, "data", "coins.csv"))

	result, err := orch.RunSingle(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, 5, result.RecordsProcessed)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, stats.RecordsBySource["csv"], "each run is a new snapshot")
	assert.EqualValues(t, 10, stats.RawRecords)
	assert.EqualValues(t, 2, stats.TotalRuns)
	assert.Zero(t, stats.FailedRuns)

	cp, err := repo.GetLastCheckpoint(ctx, "csv")
	require.NoError(t, err)
	assert.Nil(t, cp, "completed runs leave no active checkpoint")
}

func TestNewArchiveDisabled(t *testing.T) {
	archive, err := NewArchive(context.Background(), &config.ArchiveConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, archive)
}
