package domain

import (
	"errors"
	"testing"
	"time"
)

func TestLevelRecordMergeKeepsBestAndStickyPass(t *testing.T) {
	at := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	var rec LevelRecord

	rec = rec.Merge(LevelOutcome{LevelIndex: 2, Scored: 3, Total: 5, RequiredToPass: 4, Passed: false}, at)
	rec = rec.Merge(LevelOutcome{LevelIndex: 2, Scored: 5, Total: 5, RequiredToPass: 4, Passed: true}, at)
	rec = rec.Merge(LevelOutcome{LevelIndex: 2, Scored: 1, Total: 5, RequiredToPass: 4, Passed: false}, at)

	if rec.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", rec.Attempts)
	}
	if rec.BestScore != 5 || !rec.Passed {
		t.Fatalf("expected best 5 and passed, got %+v", rec)
	}
}

func TestProgressResumeLevel(t *testing.T) {
	p := Progress{Levels: map[int]LevelRecord{
		1: {LevelIndex: 1, Passed: true},
		2: {LevelIndex: 2, Passed: false},
	}}
	if got := p.ResumeLevel(3); got != 2 {
		t.Fatalf("expected resume at 2, got %d", got)
	}

	p.Levels[2] = LevelRecord{LevelIndex: 2, Passed: true}
	p.Levels[3] = LevelRecord{LevelIndex: 3, Passed: true}
	if got := p.ResumeLevel(3); got != 3 {
		t.Fatalf("expected last level when all passed, got %d", got)
	}

	if got := (Progress{}).ResumeLevel(3); got != 1 {
		t.Fatalf("expected level 1 without history, got %d", got)
	}
}

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	var err error = &InvalidQuestionError{Level: 1, Index: 4, Reason: "correct option not among options"}
	if !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
	var iq *InvalidQuestionError
	if !errors.As(err, &iq) || iq.Index != 4 {
		t.Fatalf("expected index 4, got %+v", iq)
	}
	if !errors.Is(&LevelNotFoundError{Level: 9}, ErrLevelNotFound) {
		t.Fatalf("expected ErrLevelNotFound")
	}
	if !errors.Is(&InvalidStateError{Op: "answer", Status: StatusIdle}, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState")
	}
}
