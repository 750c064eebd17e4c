package memory

import (
	"context"
	"sync"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
)

// ProgressStore keeps level history in process memory.
type ProgressStore struct {
	mu      sync.RWMutex
	records map[string]map[int]domain.LevelRecord
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{records: make(map[string]map[int]domain.LevelRecord)}
}

func (s *ProgressStore) RecordOutcome(_ context.Context, rec app.OutcomeRecord) error {
	key := app.SessionKey(rec.PlayerID, rec.Subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	levels, ok := s.records[key]
	if !ok {
		levels = make(map[int]domain.LevelRecord)
		s.records[key] = levels
	}
	levels[rec.Outcome.LevelIndex] = levels[rec.Outcome.LevelIndex].Merge(rec.Outcome, rec.RecordedAt)
	return nil
}

func (s *ProgressStore) GetProgress(_ context.Context, playerID, subject string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress := domain.Progress{PlayerID: playerID, Subject: subject, Levels: make(map[int]domain.LevelRecord)}
	for idx, rec := range s.records[app.SessionKey(playerID, subject)] {
		progress.Levels[idx] = rec
	}
	return progress, nil
}
