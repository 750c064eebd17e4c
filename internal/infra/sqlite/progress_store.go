// Package sqlite keeps player progress in a local SQLite file for offline play.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// LevelAttempt is one completed level run.
type LevelAttempt struct {
	ID             uint      `gorm:"primaryKey"`
	RunID          string    `gorm:"not null"`
	PlayerID       string    `gorm:"index:idx_player_subject;not null"`
	Subject        string    `gorm:"index:idx_player_subject;not null"`
	LevelIndex     int       `gorm:"not null"`
	Scored         int       `gorm:"not null"`
	Total          int       `gorm:"not null"`
	RequiredToPass int       `gorm:"not null"`
	Passed         bool      `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

type ProgressStore struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*ProgressStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: SQLite has a single writer and ":memory:" is per connection
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&LevelAttempt{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &ProgressStore{db: db}, nil
}

func (s *ProgressStore) RecordOutcome(ctx context.Context, rec app.OutcomeRecord) error {
	row := LevelAttempt{
		RunID:          rec.RunID,
		PlayerID:       rec.PlayerID,
		Subject:        rec.Subject,
		LevelIndex:     rec.Outcome.LevelIndex,
		Scored:         rec.Outcome.Scored,
		Total:          rec.Outcome.Total,
		RequiredToPass: rec.Outcome.RequiredToPass,
		Passed:         rec.Outcome.Passed,
		CreatedAt:      rec.RecordedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (s *ProgressStore) GetProgress(ctx context.Context, playerID, subject string) (domain.Progress, error) {
	var rows []LevelAttempt
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND subject = ?", playerID, subject).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return domain.Progress{}, fmt.Errorf("query progress: %w", err)
	}

	progress := domain.Progress{PlayerID: playerID, Subject: subject, Levels: make(map[int]domain.LevelRecord)}
	for _, r := range rows {
		o := domain.LevelOutcome{
			LevelIndex:     r.LevelIndex,
			Scored:         r.Scored,
			Total:          r.Total,
			RequiredToPass: r.RequiredToPass,
			Passed:         r.Passed,
		}
		progress.Levels[r.LevelIndex] = progress.Levels[r.LevelIndex].Merge(o, r.CreatedAt)
	}
	return progress, nil
}

// Close releases the underlying connection pool.
func (s *ProgressStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
