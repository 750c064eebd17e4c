package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
)

// staticSource serves fixed levels; loads counts calls to Level.
type staticSource struct {
	levels [][]domain.Question
	loads  int
}

func (s *staticSource) Level(_ context.Context, index int) (domain.Level, error) {
	s.loads++
	if index < 1 || index > len(s.levels) {
		return domain.Level{}, &domain.LevelNotFoundError{Level: index}
	}
	return domain.Level{Index: index, Questions: s.levels[index-1]}, nil
}

func (s *staticSource) LevelCount(context.Context) (int, error) {
	return len(s.levels), nil
}

type recorder struct {
	events []domain.Event
}

func (r *recorder) Present(ev domain.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds(kind domain.EventKind) []domain.Event {
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func questions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			Text:          fmt.Sprintf("What is %d + 1?", i),
			Options:       []string{fmt.Sprint(i + 1), fmt.Sprint(i + 2), fmt.Sprint(i + 3)},
			CorrectOption: fmt.Sprint(i + 1),
		}
	}
	return qs
}

func answerAll(t *testing.T, e *app.Engine, correct int) {
	t.Helper()
	for {
		q, ok := e.CurrentQuestion()
		if !ok {
			return
		}
		pick := q.Options[1]
		if correct > 0 {
			pick = q.CorrectOption
			correct--
		}
		if err := e.Answer(pick); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
}

func TestStartPresentsFirstQuestion(t *testing.T) {
	src := &staticSource{levels: [][]domain.Question{questions(3)}}
	rec := &recorder{}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), rec)

	if err := e.Start(context.Background(), 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if e.Status() != domain.StatusInLevel {
		t.Fatalf("expected inLevel, got %s", e.Status())
	}
	presented := rec.kinds(domain.EventQuestionPresented)
	if len(presented) != 1 || presented[0].QuestionIndex != 0 || presented[0].TotalInLevel != 3 {
		t.Fatalf("expected first question presented, got %+v", presented)
	}
}

func TestLevelCompletesExactlyOnce(t *testing.T) {
	src := &staticSource{levels: [][]domain.Question{questions(4)}}
	rec := &recorder{}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), rec)
	ctx := context.Background()

	if err := e.Start(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Answer("1"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := e.Timeout(); err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if err := e.Answer("wrong"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	state := e.State()
	if state.Score != 1 || len(state.Attempts) != 3 {
		t.Fatalf("unexpected mid-level state %+v", state)
	}
	if err := e.Answer("4"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if got := len(rec.kinds(domain.EventLevelCompleted)); got != 1 {
		t.Fatalf("expected one levelCompleted, got %d", got)
	}
	state = e.State()
	if state.Status != domain.StatusLevelComplete {
		t.Fatalf("expected levelComplete, got %s", state.Status)
	}
	correct := 0
	for _, a := range state.Attempts {
		if a.IsCorrect {
			correct++
		}
	}
	if state.Score != correct || state.Score != 2 {
		t.Fatalf("score %d does not match correct attempts %d", state.Score, correct)
	}
	if !state.Attempts[1].TimedOut() || state.Attempts[2].TimedOut() {
		t.Fatalf("expected only the second attempt to be a timeout: %+v", state.Attempts)
	}

	if err := e.Answer("1"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after completion, got %v", err)
	}
	if got := len(rec.kinds(domain.EventLevelCompleted)); got != 1 {
		t.Fatalf("completion emitted again: %d", got)
	}
}

func TestAnswerMatchesExactText(t *testing.T) {
	src := &staticSource{levels: [][]domain.Question{{
		{Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectOption: "Paris"},
		{Text: "Capital of Italy?", Options: []string{"Paris", "Rome"}, CorrectOption: "Rome"},
	}}}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), nil)
	if err := e.Start(context.Background(), 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = e.Answer("paris")
	_ = e.Answer("Rome ")
	if score := e.State().Score; score != 0 {
		t.Fatalf("expected case and whitespace sensitive matching, got score %d", score)
	}
}

func TestPassMarkScalesWithShortLevel(t *testing.T) {
	policy := app.NewLevelPolicy(map[int]app.LevelRule{1: {RequiredCount: 50, PassThreshold: 45}}, 0)
	ctx := context.Background()

	for _, tc := range []struct {
		correct int
		passed  bool
	}{
		{correct: 27, passed: true},
		{correct: 26, passed: false},
	} {
		src := &staticSource{levels: [][]domain.Question{questions(30)}}
		e := app.NewEngine(src, policy, nil)
		if err := e.Start(ctx, 1); err != nil {
			t.Fatalf("start: %v", err)
		}
		answerAll(t, e, tc.correct)

		outcome, ok := e.Outcome()
		if !ok {
			t.Fatalf("expected outcome")
		}
		if outcome.RequiredToPass != 27 {
			t.Fatalf("expected effective required 27, got %d", outcome.RequiredToPass)
		}
		if outcome.Passed != tc.passed {
			t.Fatalf("score %d: expected passed=%v, got %+v", tc.correct, tc.passed, outcome)
		}
	}
}

func TestPassMarkFloorsAtOne(t *testing.T) {
	policy := app.NewLevelPolicy(map[int]app.LevelRule{1: {RequiredCount: 50, PassThreshold: 45}}, 0)
	src := &staticSource{levels: [][]domain.Question{questions(1)}}
	e := app.NewEngine(src, policy, nil)
	if err := e.Start(context.Background(), 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	answerAll(t, e, 1)

	outcome, _ := e.Outcome()
	if outcome.RequiredToPass != 1 || !outcome.Passed {
		t.Fatalf("expected pass with required 1, got %+v", outcome)
	}
}

func TestAdvanceAfterFailIsRejected(t *testing.T) {
	policy := app.NewLevelPolicy(map[int]app.LevelRule{1: {RequiredCount: 2, PassThreshold: 2}}, 0)
	src := &staticSource{levels: [][]domain.Question{questions(2), questions(2)}}
	e := app.NewEngine(src, policy, nil)
	ctx := context.Background()
	if err := e.Start(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	answerAll(t, e, 1)

	err := e.AdvanceLevel(ctx)
	var stateErr *domain.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if e.Status() != domain.StatusLevelComplete || e.State().CurrentLevel != 1 {
		t.Fatalf("state changed after rejected advance: %+v", e.State())
	}
}

func TestRetryResetsScoreAndKeepsLevel(t *testing.T) {
	policy := app.NewLevelPolicy(map[int]app.LevelRule{2: {RequiredCount: 3, PassThreshold: 3}}, 0)
	src := &staticSource{levels: [][]domain.Question{questions(1), questions(3)}}
	e := app.NewEngine(src, policy, nil)
	ctx := context.Background()
	if err := e.Start(ctx, 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	answerAll(t, e, 2)
	if e.State().Score != 2 {
		t.Fatalf("expected score 2 before retry")
	}

	loads := src.loads
	if err := e.RetryLevel(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	state := e.State()
	if state.Score != 0 || len(state.Attempts) != 0 || state.CurrentLevel != 2 || state.Status != domain.StatusInLevel {
		t.Fatalf("unexpected state after retry: %+v", state)
	}
	if src.loads != loads+1 {
		t.Fatalf("expected retry to reload the level")
	}
}

func TestRetryRequiresCompletedLevel(t *testing.T) {
	src := &staticSource{levels: [][]domain.Question{questions(2)}}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), nil)
	if err := e.RetryLevel(context.Background()); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state from idle, got %v", err)
	}
}

func TestThreeLevelRun(t *testing.T) {
	policy := app.NewLevelPolicy(map[int]app.LevelRule{
		1: {RequiredCount: 2, PassThreshold: 2},
		2: {RequiredCount: 2, PassThreshold: 1},
		3: {RequiredCount: 1, PassThreshold: 1},
	}, 0)
	src := &staticSource{levels: [][]domain.Question{questions(2), questions(2), questions(1)}}
	rec := &recorder{}
	e := app.NewEngine(src, policy, rec)
	ctx := context.Background()

	if err := e.Start(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	answerAll(t, e, 2)
	if err := e.AdvanceLevel(ctx); err != nil {
		t.Fatalf("advance to 2: %v", err)
	}
	answerAll(t, e, 1)
	if outcome, _ := e.Outcome(); !outcome.Passed || outcome.RequiredToPass != 1 {
		t.Fatalf("expected level 2 passed with required 1, got %+v", outcome)
	}
	if err := e.AdvanceLevel(ctx); err != nil {
		t.Fatalf("advance to 3: %v", err)
	}
	answerAll(t, e, 1)
	if err := e.AdvanceLevel(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if e.Status() != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", e.Status())
	}
	finished := rec.kinds(domain.EventQuizFinished)
	if len(finished) != 1 {
		t.Fatalf("expected one quizFinished, got %d", len(finished))
	}
	summary := finished[0].Summary
	if summary.TotalCorrect != 4 || summary.TotalQuestions != 5 || len(summary.PerLevel) != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if err := e.Start(ctx, 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected finished run to reject start, got %v", err)
	}
	e.Reset()
	if e.Status() != domain.StatusIdle || len(e.History()) != 0 {
		t.Fatalf("expected clean idle engine after reset")
	}
}

func TestInvalidQuestionLeavesStateUnchanged(t *testing.T) {
	bad := questions(3)
	bad[1].CorrectOption = "not an option"
	src := &staticSource{levels: [][]domain.Question{bad}}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), nil)

	err := e.Start(context.Background(), 1)
	var invalid *domain.InvalidQuestionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidQuestionError, got %v", err)
	}
	if invalid.Index != 1 {
		t.Fatalf("expected offending index 1, got %d", invalid.Index)
	}
	if e.Status() != domain.StatusIdle {
		t.Fatalf("expected idle, got %s", e.Status())
	}
}

func TestInvalidQuestionShapes(t *testing.T) {
	cases := []struct {
		name string
		q    domain.Question
	}{
		{"single option", domain.Question{Text: "q", Options: []string{"a"}, CorrectOption: "a"}},
		{"missing answer", domain.Question{Text: "q", Options: []string{"a", "b"}}},
		{"too many options", domain.Question{Text: "q", Options: []string{"a", "b", "c", "d", "e", "f", "g"}, CorrectOption: "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &staticSource{levels: [][]domain.Question{{tc.q}}}
			e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), nil)
			if err := e.Start(context.Background(), 1); !errors.Is(err, domain.ErrInvalidQuestion) {
				t.Fatalf("expected invalid question, got %v", err)
			}
		})
	}
}

func TestInvalidNextLevelKeepsCompletedState(t *testing.T) {
	bad := questions(1)
	bad[0].Options = []string{"only"}
	src := &staticSource{levels: [][]domain.Question{questions(1), bad}}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), nil)
	ctx := context.Background()
	if err := e.Start(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	answerAll(t, e, 1)
	if err := e.AdvanceLevel(ctx); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question on advance, got %v", err)
	}
	if e.Status() != domain.StatusLevelComplete || e.State().CurrentLevel != 1 {
		t.Fatalf("expected level 1 still complete, got %+v", e.State())
	}
}

func TestStartUnknownLevel(t *testing.T) {
	src := &staticSource{levels: [][]domain.Question{questions(1)}}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), nil)
	if err := e.Start(context.Background(), 5); !errors.Is(err, domain.ErrLevelNotFound) {
		t.Fatalf("expected level not found, got %v", err)
	}
}

func TestEmptyLevelOutcome(t *testing.T) {
	ctx := context.Background()

	strict := app.NewLevelPolicy(map[int]app.LevelRule{1: {RequiredCount: 5, PassThreshold: 3}}, 0)
	rec := &recorder{}
	e := app.NewEngine(&staticSource{levels: [][]domain.Question{{}}}, strict, rec)
	if err := e.Start(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	outcome, _ := e.Outcome()
	if e.Status() != domain.StatusLevelComplete || outcome.Passed || outcome.Total != 0 {
		t.Fatalf("expected immediate failed outcome, got %+v", outcome)
	}
	if len(rec.kinds(domain.EventQuestionPresented)) != 0 || len(rec.kinds(domain.EventLevelCompleted)) != 1 {
		t.Fatalf("unexpected events %+v", rec.events)
	}

	lenient := app.NewLevelPolicy(map[int]app.LevelRule{1: {RequiredCount: 5, PassThreshold: 0}}, 0)
	e = app.NewEngine(&staticSource{levels: [][]domain.Question{{}}}, lenient, nil)
	if err := e.Start(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if outcome, _ := e.Outcome(); !outcome.Passed {
		t.Fatalf("expected zero threshold to pass an empty level, got %+v", outcome)
	}
}

func TestAnswerScoredEvents(t *testing.T) {
	src := &staticSource{levels: [][]domain.Question{questions(2)}}
	rec := &recorder{}
	e := app.NewEngine(src, app.NewLevelPolicy(nil, 0), rec)
	if err := e.Start(context.Background(), 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = e.Answer("1")
	_ = e.Timeout()

	scored := rec.kinds(domain.EventAnswerScored)
	if len(scored) != 2 {
		t.Fatalf("expected 2 answerScored events, got %d", len(scored))
	}
	if scored[0].RunningScore != 1 || !scored[0].Attempt.IsCorrect {
		t.Fatalf("unexpected first scored event %+v", scored[0])
	}
	if scored[1].Attempt.Selected != nil || scored[1].RunningScore != 1 {
		t.Fatalf("expected timeout attempt with nil selection, got %+v", scored[1].Attempt)
	}
}
