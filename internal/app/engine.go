package app

import (
	"context"

	"edukids-quiz/internal/domain"
)

const (
	minOptions = 2
	maxOptions = 6
)

// QuestionSource supplies levels by index. Implementations may return a
// different order or subset on every call.
type QuestionSource interface {
	Level(ctx context.Context, index int) (domain.Level, error)
	LevelCount(ctx context.Context) (int, error)
}

// Presenter receives engine events. It must not call back into the engine.
type Presenter interface {
	Present(event domain.Event)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(domain.Event)

func (f PresenterFunc) Present(event domain.Event) { f(event) }

type discardPresenter struct{}

func (discardPresenter) Present(domain.Event) {}

// Engine drives one quiz run across levels. It is not safe for concurrent use.
type Engine struct {
	source    QuestionSource
	policy    LevelPolicy
	presenter Presenter

	state   domain.RunState
	level   domain.Level
	outcome *domain.LevelOutcome
	history []domain.LevelOutcome
}

func NewEngine(source QuestionSource, policy LevelPolicy, presenter Presenter) *Engine {
	if presenter == nil {
		presenter = discardPresenter{}
	}
	return &Engine{
		source:    source,
		policy:    policy,
		presenter: presenter,
		state:     domain.RunState{Status: domain.StatusIdle},
	}
}

// Start loads a level and presents its first question. On error nothing changes.
// A finished run must be Reset before it can start again.
func (e *Engine) Start(ctx context.Context, levelIndex int) error {
	if e.state.Status == domain.StatusFinished {
		return &domain.InvalidStateError{Op: "start", Status: e.state.Status}
	}
	if levelIndex < 1 {
		return &domain.LevelNotFoundError{Level: levelIndex}
	}
	level, err := e.source.Level(ctx, levelIndex)
	if err != nil {
		return err
	}
	level.Index = levelIndex
	if err := validateLevel(level); err != nil {
		return err
	}
	rule := e.policy.Rule(levelIndex, len(level.Questions))
	level.RequiredCount = rule.RequiredCount
	level.PassThreshold = rule.PassThreshold

	e.level = level
	e.outcome = nil
	e.state = domain.RunState{
		CurrentLevel: levelIndex,
		Attempts:     []domain.Attempt{},
		Status:       domain.StatusInLevel,
	}

	if len(level.Questions) == 0 {
		e.completeLevel()
		return nil
	}
	e.presentCurrent()
	return nil
}

// Answer scores the current question by exact text comparison.
func (e *Engine) Answer(selected string) error {
	if e.state.Status != domain.StatusInLevel {
		return &domain.InvalidStateError{Op: "answer", Status: e.state.Status}
	}
	q := e.level.Questions[e.state.CurrentQuestion]
	e.record(&selected, selected == q.CorrectOption)
	return nil
}

// Timeout records the current question as unanswered and incorrect.
func (e *Engine) Timeout() error {
	if e.state.Status != domain.StatusInLevel {
		return &domain.InvalidStateError{Op: "timeout", Status: e.state.Status}
	}
	e.record(nil, false)
	return nil
}

// AdvanceLevel moves past a passed level, finishing the run after the last one.
func (e *Engine) AdvanceLevel(ctx context.Context) error {
	if e.state.Status != domain.StatusLevelComplete || e.outcome == nil || !e.outcome.Passed {
		return &domain.InvalidStateError{Op: "advance level", Status: e.state.Status}
	}
	count, err := e.source.LevelCount(ctx)
	if err != nil {
		return err
	}
	next := e.state.CurrentLevel + 1
	if next > count {
		e.state.Status = domain.StatusFinished
		summary := e.Summary()
		e.presenter.Present(domain.Event{
			Kind:    domain.EventQuizFinished,
			Level:   e.state.CurrentLevel,
			Summary: &summary,
		})
		return nil
	}
	return e.Start(ctx, next)
}

// RetryLevel reloads the current level from the source.
func (e *Engine) RetryLevel(ctx context.Context) error {
	if e.state.Status != domain.StatusLevelComplete {
		return &domain.InvalidStateError{Op: "retry level", Status: e.state.Status}
	}
	return e.Start(ctx, e.state.CurrentLevel)
}

// Reset abandons the run and returns to Idle.
func (e *Engine) Reset() {
	e.state = domain.RunState{Status: domain.StatusIdle}
	e.level = domain.Level{}
	e.outcome = nil
	e.history = nil
}

// State returns a copy of the run state.
func (e *Engine) State() domain.RunState {
	s := e.state
	s.Attempts = append([]domain.Attempt(nil), e.state.Attempts...)
	return s
}

// Status returns the current state machine position.
func (e *Engine) Status() domain.Status {
	return e.state.Status
}

// Outcome returns the outcome of the most recently completed level run.
func (e *Engine) Outcome() (domain.LevelOutcome, bool) {
	if e.outcome == nil {
		return domain.LevelOutcome{}, false
	}
	return *e.outcome, true
}

// History returns every level outcome of this run in completion order.
func (e *Engine) History() []domain.LevelOutcome {
	return append([]domain.LevelOutcome(nil), e.history...)
}

// Summary aggregates the outcome history.
func (e *Engine) Summary() domain.Summary {
	summary := domain.Summary{PerLevel: e.History()}
	for _, o := range e.history {
		summary.TotalCorrect += o.Scored
		summary.TotalQuestions += o.Total
	}
	return summary
}

// CurrentQuestion returns the question awaiting an answer.
func (e *Engine) CurrentQuestion() (domain.Question, bool) {
	if e.state.Status != domain.StatusInLevel {
		return domain.Question{}, false
	}
	return e.level.Questions[e.state.CurrentQuestion], true
}

// Level returns the active level with the policy applied.
func (e *Engine) Level() domain.Level {
	return e.level
}

func (e *Engine) record(selected *string, correct bool) {
	attempt := domain.Attempt{
		QuestionIndex: e.state.CurrentQuestion,
		Selected:      selected,
		IsCorrect:     correct,
	}
	e.state.Attempts = append(e.state.Attempts, attempt)
	if correct {
		e.state.Score++
	}
	e.state.CurrentQuestion++
	e.presenter.Present(domain.Event{
		Kind:          domain.EventAnswerScored,
		Level:         e.state.CurrentLevel,
		QuestionIndex: attempt.QuestionIndex,
		TotalInLevel:  len(e.level.Questions),
		Attempt:       &attempt,
		RunningScore:  e.state.Score,
	})

	if e.state.CurrentQuestion < len(e.level.Questions) {
		e.presentCurrent()
		return
	}
	e.completeLevel()
}

func (e *Engine) presentCurrent() {
	q := e.level.Questions[e.state.CurrentQuestion]
	e.presenter.Present(domain.Event{
		Kind:          domain.EventQuestionPresented,
		Level:         e.state.CurrentLevel,
		Question:      &q,
		QuestionIndex: e.state.CurrentQuestion,
		TotalInLevel:  len(e.level.Questions),
		RunningScore:  e.state.Score,
	})
}

func (e *Engine) completeLevel() {
	total := len(e.level.Questions)
	required := EffectiveRequired(LevelRule{
		RequiredCount: e.level.RequiredCount,
		PassThreshold: e.level.PassThreshold,
	}, total)
	outcome := domain.LevelOutcome{
		LevelIndex:     e.state.CurrentLevel,
		Scored:         e.state.Score,
		Total:          total,
		RequiredToPass: required,
		Passed:         e.state.Score >= required,
	}
	e.outcome = &outcome
	e.history = append(e.history, outcome)
	e.state.Status = domain.StatusLevelComplete
	e.presenter.Present(domain.Event{
		Kind:         domain.EventLevelCompleted,
		Level:        outcome.LevelIndex,
		TotalInLevel: total,
		RunningScore: outcome.Scored,
		Outcome:      &outcome,
	})
}

func validateLevel(level domain.Level) error {
	for i, q := range level.Questions {
		if err := ValidateQuestion(level.Index, i, q); err != nil {
			return err
		}
	}
	return nil
}

// ValidateQuestion reports whether a question can be played.
func ValidateQuestion(level, index int, q domain.Question) error {
	if reason := questionDefect(q); reason != "" {
		return &domain.InvalidQuestionError{Level: level, Index: index, Reason: reason}
	}
	return nil
}

func questionDefect(q domain.Question) string {
	switch {
	case len(q.Options) < minOptions:
		return "fewer than 2 options"
	case len(q.Options) > maxOptions:
		return "more than 6 options"
	case q.CorrectOption == "":
		return "missing correct option"
	}
	for _, opt := range q.Options {
		if opt == q.CorrectOption {
			return ""
		}
	}
	return "correct option not among options"
}
