package service

import (
	"context"
	"fmt"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/pipeline"
	"github.com/timmy/cryptoetl/internal/storage"
)

// NewArchive connects the raw archive bucket when archiving is enabled.
// Parameters:
//   - ctx: context for the bucket check.
//   - cfg: archive configuration.
//
// Returns:
//   - pipeline.Archiver: raw archive, or nil when disabled.
//   - error: non-nil if the client or bucket cannot be set up.
func NewArchive(ctx context.Context, cfg *config.ArchiveConfig) (pipeline.Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	objectStorage, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure archive bucket: %w", err)
	}
	return storage.NewRawArchive(objectStorage, cfg.Prefix), nil
}
