package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps one hash per player and subject:
// HSET progress:{playerID}:{subject} {levelIndex} {LevelRecord JSON}
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) RecordOutcome(ctx context.Context, rec app.OutcomeRecord) error {
	key := s.key(rec.PlayerID, rec.Subject)
	field := strconv.Itoa(rec.Outcome.LevelIndex)

	// WATCH keeps concurrent sessions of the same player from losing attempts.
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		var current domain.LevelRecord
		raw, err := tx.HGet(ctx, key, field).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return fmt.Errorf("read progress: %w", err)
		default:
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("decode progress: %w", err)
			}
		}

		next, err := json.Marshal(current.Merge(rec.Outcome, rec.RecordedAt))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, next)
			return nil
		})
		return err
	}, key)
}

func (s *ProgressStore) GetProgress(ctx context.Context, playerID, subject string) (domain.Progress, error) {
	entries, err := s.client.HGetAll(ctx, s.key(playerID, subject)).Result()
	if err != nil {
		return domain.Progress{}, fmt.Errorf("read progress: %w", err)
	}
	progress := domain.Progress{PlayerID: playerID, Subject: subject, Levels: make(map[int]domain.LevelRecord, len(entries))}
	for field, raw := range entries {
		idx, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var rec domain.LevelRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return domain.Progress{}, fmt.Errorf("decode progress: %w", err)
		}
		progress.Levels[idx] = rec
	}
	return progress, nil
}

func (s *ProgressStore) key(playerID, subject string) string {
	return "progress:" + playerID + ":" + subject
}
