package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
)

type normalizedKey struct {
	source, symbol string
	lastUpdated    time.Time
}

// memStore is an in-memory Store keyed like the real unique index.
type memStore struct {
	mu sync.Mutex

	raw         []domain.RawRecord
	normalized  map[normalizedKey]domain.NormalizedRecord
	checkpoints []domain.Checkpoint
	runs        map[string]*domain.RunResult
	drift       []*domain.SchemaDriftReport

	failNormalizedAt int // 1-based SaveNormalized call that fails; 0 never
	normalizedCalls  int
	failRaw          bool
}

func newMemStore() *memStore {
	return &memStore{
		normalized: map[normalizedKey]domain.NormalizedRecord{},
		runs:       map[string]*domain.RunResult{},
	}
}

func (s *memStore) SaveRaw(_ context.Context, source string, items []domain.JSONMap, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRaw {
		return fmt.Errorf("raw table unavailable")
	}
	for i, item := range items {
		s.raw = append(s.raw, domain.RawRecord{Source: source, Payload: item, SourceID: ids[i], IngestedAt: time.Now()})
	}
	return nil
}

func (s *memStore) SaveNormalized(_ context.Context, batch []domain.NormalizedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.normalizedCalls++
	if s.failNormalizedAt == s.normalizedCalls {
		return fmt.Errorf("connection lost")
	}
	for _, r := range batch {
		key := normalizedKey{r.Source, r.Symbol, r.LastUpdated}
		if _, ok := s.normalized[key]; !ok {
			s.normalized[key] = r
		}
	}
	return nil
}

func (s *memStore) SaveCheckpoint(_ context.Context, source string, marker domain.JSONMap, processed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = append(s.checkpoints, domain.Checkpoint{
		ID: uint(len(s.checkpoints) + 1), Source: source, Marker: marker, RecordsProcessed: processed, CreatedAt: time.Now(),
	})
	return nil
}

func (s *memStore) GetLastCheckpoint(_ context.Context, source string) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.checkpoints) - 1; i >= 0; i-- {
		cp := s.checkpoints[i]
		if cp.Source == source && !cp.Completed {
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) MarkCheckpointCompleted(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.checkpoints {
		if s.checkpoints[i].Source == source {
			s.checkpoints[i].Completed = true
		}
	}
	return nil
}

func (s *memStore) LogRun(_ context.Context, run *domain.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.RunID] = &copied
	return nil
}

func (s *memStore) LogSchemaDrift(_ context.Context, report *domain.SchemaDriftReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drift = append(s.drift, report)
	return nil
}

func (s *memStore) normalizedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.normalized)
}
