package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/timmy/cryptoetl/internal/logger"
)

const jsonLinesContentType = "application/x-ndjson"

// RawArchive writes raw extractions to object storage as JSON lines, one object per run.
type RawArchive struct {
	store  ObjectStorage
	prefix string
	now    func() time.Time
}

// NewRawArchive creates a RawArchive.
// Parameters:
//   - store: object storage backend.
//   - prefix: key prefix; empty means "raw".
//
// Returns:
//   - *RawArchive: archive writing under prefix.
func NewRawArchive(store ObjectStorage, prefix string) *RawArchive {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "raw"
	}
	return &RawArchive{
		store:  store,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Key returns the object key for a run: <prefix>/<source>/<yyyy>/<mm>/<dd>/<runID>.jsonl
func (a *RawArchive) Key(source, runID string, at time.Time) string {
	at = at.UTC()
	return path.Join(
		a.prefix,
		source,
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		runID+".jsonl",
	)
}

// ArchiveRaw uploads items under the key for (source, runID). Empty extractions are skipped.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: source name.
//   - runID: run identifier; empty generates a timestamp name.
//   - items: raw payloads.
//
// Returns:
//   - error: non-nil if encoding or upload fails.
func (a *RawArchive) ArchiveRaw(ctx context.Context, source, runID string, items []map[string]any) error {
	if len(items) == 0 {
		return nil
	}
	now := a.now()
	if runID == "" {
		runID = now.Format("20060102T150405Z")
	}

	body, err := EncodeJSONLines(items)
	if err != nil {
		return fmt.Errorf("encode raw archive: %w", err)
	}

	key := a.Key(source, runID, now)
	if err := a.store.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), jsonLinesContentType); err != nil {
		return err
	}

	logger.With(logger.Fields{
		logger.FieldSource: source,
		logger.FieldCount:  len(items),
		"key":              key,
	}).Debug(ctx, "Archived raw extraction")
	return nil
}

// EncodeJSONLines renders items as newline-delimited JSON.
func EncodeJSONLines(items []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
