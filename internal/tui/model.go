// Package tui plays a quiz in the terminal using Bubble Tea.
package tui

import (
	"context"
	"strconv"
	"time"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
)

// Options configures a terminal quiz run.
type Options struct {
	PlayerID     string
	Subject      string
	Level        int
	QuestionTime time.Duration
	NoColor      bool
}

// Model renders one learner's quiz and forwards key presses to the play service.
type Model struct {
	ctx     context.Context
	service *app.PlayService
	opts    Options

	runID    string
	state    domain.RunState
	question *domain.Question
	qIndex   int
	qTotal   int
	feedback string
	correct  bool
	outcome  *domain.LevelOutcome
	summary  *domain.Summary
	err      error

	timer  timer.Model
	timing bool
}

// NewModel builds a model; the run begins when the program calls Init.
func NewModel(ctx context.Context, service *app.PlayService, opts Options) Model {
	return Model{
		ctx:     ctx,
		service: service,
		opts:    opts,
		state:   domain.RunState{Status: domain.StatusIdle},
	}
}

// Run starts the Bubble Tea program and blocks until the learner quits.
func Run(ctx context.Context, service *app.PlayService, opts Options) error {
	final, err := tea.NewProgram(NewModel(ctx, service, opts), tea.WithContext(ctx)).Run()
	if m, ok := final.(Model); ok {
		service.End(context.Background(), opts.PlayerID, opts.Subject, m.runID)
	}
	return err
}

// resultMsg carries the outcome of a play service call.
type resultMsg struct {
	result app.PlayResult
	err    error
}

// Init begins the run.
func (m Model) Init() tea.Cmd {
	return m.begin(m.opts.Level)
}

func (m Model) begin(level int) tea.Cmd {
	return func() tea.Msg {
		res, err := m.service.Begin(m.ctx, m.opts.PlayerID, m.opts.Subject, level)
		return resultMsg{result: res, err: err}
	}
}

// Update handles play results, timer messages and keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case resultMsg:
		if typed.err != nil {
			m.err = typed.err
			return m, nil
		}
		m.err = nil
		return m.apply(typed.result)
	case timer.TickMsg, timer.StartStopMsg:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd
	case timer.TimeoutMsg:
		if !m.timing || typed.ID != m.timer.ID() || m.state.Status != domain.StatusInLevel {
			return m, nil
		}
		m.timing = false
		return m.call(m.service.Timeout(m.ctx, m.opts.PlayerID, m.opts.Subject))
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	id, subject := m.opts.PlayerID, m.opts.Subject
	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "n":
		return m.call(m.service.Advance(m.ctx, id, subject))
	case "r":
		return m.call(m.service.Retry(m.ctx, id, subject))
	case "esc":
		return m.call(m.service.Reset(m.ctx, id, subject))
	case "enter":
		if m.state.Status == domain.StatusIdle {
			return m, m.begin(0)
		}
		return m, nil
	}

	choice, err := strconv.Atoi(key.String())
	if err != nil || m.question == nil || m.state.Status != domain.StatusInLevel {
		return m, nil
	}
	if choice < 1 || choice > len(m.question.Options) {
		return m, nil
	}
	return m.call(m.service.Answer(m.ctx, id, subject, m.question.Options[choice-1]))
}

func (m Model) call(res app.PlayResult, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	return m.apply(res)
}

// apply folds engine events into the view and restarts the question timer when needed.
func (m Model) apply(res app.PlayResult) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.runID = res.RunID
	for _, ev := range res.Events {
		switch ev.Kind {
		case domain.EventQuestionPresented:
			m.question = ev.Question
			m.qIndex = ev.QuestionIndex
			m.qTotal = ev.TotalInLevel
			m.outcome = nil
			m.summary = nil
			if m.opts.QuestionTime > 0 {
				m.timer = timer.NewWithInterval(m.opts.QuestionTime, time.Second)
				m.timing = true
				cmd = m.timer.Init()
			}
		case domain.EventAnswerScored:
			m.correct = ev.Attempt != nil && ev.Attempt.IsCorrect
			m.feedback = feedbackFor(ev.Attempt, m.question)
		case domain.EventLevelCompleted:
			m.question = nil
			m.outcome = ev.Outcome
			m.timing = false
		case domain.EventQuizFinished:
			m.summary = ev.Summary
		}
	}
	if res.State.Status != domain.StatusInLevel {
		m.timing = false
	}
	if res.State.Status == domain.StatusIdle {
		m.question, m.outcome, m.summary, m.feedback = nil, nil, nil, ""
	}
	m.state = res.State
	return m, cmd
}

func feedbackFor(attempt *domain.Attempt, question *domain.Question) string {
	switch {
	case attempt == nil:
		return ""
	case attempt.IsCorrect:
		return "Correct!"
	case question == nil:
		return "Not quite."
	case attempt.TimedOut():
		return "Time's up! The answer was " + question.CorrectOption + "."
	default:
		return "Not quite. The answer was " + question.CorrectOption + "."
	}
}
