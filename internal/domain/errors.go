package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLevelNotFound is returned when a question source cannot supply a level.
	ErrLevelNotFound = errors.New("level not found")
	// ErrInvalidQuestion indicates a loaded level contains an unanswerable question.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidState is returned when an engine operation is not allowed in the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrSessionNotFound is returned when a play session has not been started.
	ErrSessionNotFound = errors.New("play session not found")
	// ErrBankNotFound indicates no question bank exists for a subject.
	ErrBankNotFound = errors.New("question bank not found")
)

// LevelNotFoundError names the level that could not be loaded.
type LevelNotFoundError struct {
	Level int
}

func (e *LevelNotFoundError) Error() string {
	return fmt.Sprintf("level %d: %v", e.Level, ErrLevelNotFound)
}

func (e *LevelNotFoundError) Unwrap() error { return ErrLevelNotFound }

// InvalidQuestionError names the offending question by its index within the level.
type InvalidQuestionError struct {
	Level  int
	Index  int
	Reason string
}

func (e *InvalidQuestionError) Error() string {
	return fmt.Sprintf("level %d question %d: %v: %s", e.Level, e.Index, ErrInvalidQuestion, e.Reason)
}

func (e *InvalidQuestionError) Unwrap() error { return ErrInvalidQuestion }

// InvalidStateError reports the operation that was rejected and the status it was rejected in.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s while %s: %v", e.Op, e.Status, ErrInvalidState)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
