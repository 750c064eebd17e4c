package tui

import (
	"fmt"
	"strings"

	"edukids-quiz/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleColor   = lipgloss.Color("33")
	mutedColor   = lipgloss.Color("242")
	correctColor = lipgloss.Color("42")
	wrongColor   = lipgloss.Color("196")
)

// View renders the current screen.
func (m Model) View() string {
	lines := []string{
		m.stylize(fmt.Sprintf("EduKids Quiz | %s | Level %d", m.opts.Subject, m.state.CurrentLevel), titleColor, true),
	}

	if m.err != nil {
		lines = append(lines, m.stylize("Error: "+m.err.Error(), wrongColor, false))
	}

	if m.feedback != "" {
		color := wrongColor
		if m.correct {
			color = correctColor
		}
		lines = append(lines, m.stylize(m.feedback, color, false))
	}

	switch m.state.Status {
	case domain.StatusIdle:
		lines = append(lines, "", "Press enter to start.")
	case domain.StatusInLevel:
		lines = append(lines, m.renderQuestion()...)
	case domain.StatusLevelComplete:
		lines = append(lines, m.renderOutcome()...)
	case domain.StatusFinished:
		lines = append(lines, m.renderSummary()...)
	}

	lines = append(lines, "", m.stylize(m.help(), mutedColor, false))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderQuestion() []string {
	if m.question == nil {
		return nil
	}
	lines := []string{
		"",
		m.stylize(fmt.Sprintf("Question %d of %d   Score: %d", m.qIndex+1, m.qTotal, m.state.Score), mutedColor, false),
		m.question.Text,
		"",
	}
	for i, opt := range m.question.Options {
		lines = append(lines, fmt.Sprintf("  %d) %s", i+1, opt))
	}
	if m.timing {
		lines = append(lines, "", "Time left: "+m.timer.View())
	}
	return lines
}

func (m Model) renderOutcome() []string {
	if m.outcome == nil {
		return nil
	}
	o := m.outcome
	result := m.stylize("Level passed!", correctColor, true)
	if !o.Passed {
		result = m.stylize("Not passed yet, try again!", wrongColor, true)
	}
	return []string{
		"",
		result,
		fmt.Sprintf("You scored %d out of %d (needed %d).", o.Scored, o.Total, o.RequiredToPass),
	}
}

func (m Model) renderSummary() []string {
	if m.summary == nil {
		return nil
	}
	lines := []string{
		"",
		m.stylize("Quiz finished!", correctColor, true),
		fmt.Sprintf("Total: %d out of %d", m.summary.TotalCorrect, m.summary.TotalQuestions),
	}
	for _, o := range m.summary.PerLevel {
		mark := "passed"
		if !o.Passed {
			mark = "not passed"
		}
		lines = append(lines, fmt.Sprintf("  Level %d: %d/%d %s", o.LevelIndex, o.Scored, o.Total, mark))
	}
	return lines
}

func (m Model) help() string {
	keys := []string{}
	switch m.state.Status {
	case domain.StatusInLevel:
		keys = append(keys, "1-6 answer")
	case domain.StatusLevelComplete:
		if m.outcome != nil && m.outcome.Passed {
			keys = append(keys, "n next level")
		}
		keys = append(keys, "r retry")
	case domain.StatusIdle:
		keys = append(keys, "enter start")
	}
	if m.state.Status != domain.StatusIdle {
		keys = append(keys, "esc reset")
	}
	keys = append(keys, "q quit")
	return strings.Join(keys, " | ")
}

func (m Model) stylize(text string, color lipgloss.Color, bold bool) string {
	if m.opts.NoColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Bold(bold).Render(text)
}
