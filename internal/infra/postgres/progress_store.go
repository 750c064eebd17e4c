package postgres

import (
	"context"
	"fmt"
	"time"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProgressStore appends one level_attempts row per completed level and
// folds them back into progress on read.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) RecordOutcome(ctx context.Context, rec app.OutcomeRecord) error {
	o := rec.Outcome
	_, err := s.pool.Exec(ctx, `
		INSERT INTO level_attempts
			(run_id, player_id, subject, level_index, scored, total, required_to_pass, passed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.RunID, rec.PlayerID, rec.Subject, o.LevelIndex, o.Scored, o.Total, o.RequiredToPass, o.Passed, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (s *ProgressStore) GetProgress(ctx context.Context, playerID, subject string) (domain.Progress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT level_index, scored, total, required_to_pass, passed, created_at
		FROM level_attempts
		WHERE player_id=$1 AND subject=$2
		ORDER BY created_at, id`, playerID, subject)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	progress := domain.Progress{PlayerID: playerID, Subject: subject, Levels: make(map[int]domain.LevelRecord)}
	for rows.Next() {
		var (
			o  domain.LevelOutcome
			at time.Time
		)
		if err := rows.Scan(&o.LevelIndex, &o.Scored, &o.Total, &o.RequiredToPass, &o.Passed, &at); err != nil {
			return domain.Progress{}, fmt.Errorf("scan progress: %w", err)
		}
		progress.Levels[o.LevelIndex] = progress.Levels[o.LevelIndex].Merge(o, at)
	}
	if err := rows.Err(); err != nil {
		return domain.Progress{}, fmt.Errorf("read progress: %w", err)
	}
	return progress, nil
}
