package service

import (
	"fmt"

	"github.com/timmy/cryptoetl/internal/backoff"
	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/drift"
	"github.com/timmy/cryptoetl/internal/fetch"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/orchestrator"
	"github.com/timmy/cryptoetl/internal/pipeline"
	"github.com/timmy/cryptoetl/internal/source"
	"github.com/timmy/cryptoetl/internal/source/coingecko"
	"github.com/timmy/cryptoetl/internal/source/coinpaprika"
	"github.com/timmy/cryptoetl/internal/source/csvfile"
)

// Sources builds the enabled source adapters in registration order: coinpaprika, coingecko, csv.
func Sources(cfg *config.SourcesConfig) []source.Source {
	var sources []source.Source
	if c := cfg.CoinPaprika; c.Enabled {
		sources = append(sources, coinpaprika.NewAdapter(fetch.NewClient(c.Timeout), coinpaprika.Config{
			BaseURL:           c.BaseURL,
			APIKey:            c.APIKey,
			RequestsPerMinute: c.RequestsPerMinute,
			Limit:             c.Limit,
		}))
	}
	if c := cfg.CoinGecko; c.Enabled {
		sources = append(sources, coingecko.NewAdapter(fetch.NewClient(c.Timeout), coingecko.Config{
			BaseURL:           c.BaseURL,
			APIKey:            c.APIKey,
			RequestsPerMinute: c.RequestsPerMinute,
			PerPage:           c.PerPage,
		}))
	}
	if c := cfg.CSV; c.Enabled {
		sources = append(sources, csvfile.NewAdapter(csvfile.Config{
			Path:         c.Path,
			CreateSample: c.CreateSample,
		}))
	}
	return sources
}

// BuildOrchestrator wires every enabled source into a pipeline and registers it.
// Parameters:
//   - cfg: application configuration.
//   - store: persistence for records, checkpoints, runs and drift.
//   - archive: optional raw archive; nil disables archiving.
//
// Returns:
//   - *orchestrator.Orchestrator: orchestrator with all enabled pipelines registered.
//   - error: non-nil if no source is enabled or registration fails.
func BuildOrchestrator(cfg *config.Config, store pipeline.Store, archive pipeline.Archiver) (*orchestrator.Orchestrator, error) {
	sources := Sources(&cfg.Sources)
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}

	bo := backoff.New(backoff.Config{
		BaseDelay: cfg.Backoff.BaseDelay,
		Factor:    cfg.Backoff.Factor,
		MaxDelay:  cfg.Backoff.MaxDelay,
	})
	detector := drift.NewDetector(cfg.SchemaDrift.Threshold)
	pcfg := pipeline.Config{
		MaxRetries:         cfg.ETL.MaxRetries,
		RateLimitEnabled:   cfg.RateLimit.Enabled,
		CheckpointEnabled:  cfg.Checkpoint.Enabled,
		CheckpointInterval: cfg.Checkpoint.Interval,
		DriftEnabled:       cfg.SchemaDrift.Enabled,
	}

	var opts []pipeline.Option
	if archive != nil {
		opts = append(opts, pipeline.WithArchive(archive))
	}

	orch := orchestrator.New(store, orchestrator.Config{
		Workers:    cfg.ETL.Workers,
		RunTimeout: cfg.ETL.RunTimeout,
	})
	for _, src := range sources {
		if err := orch.Register(pipeline.NewAdapter(src, store, bo, detector, pcfg, opts...)); err != nil {
			return nil, err
		}
		logger.GetDefault().WithFields(logger.Fields{
			logger.FieldSource: src.GetSourceID(),
			"display_name":     src.GetDisplayName(),
			"rpm":              src.RequestsPerMinute(),
			"max_backoff_ms":   bo.Max().Milliseconds(),
		}).Info("Registered pipeline")
	}
	return orch, nil
}
