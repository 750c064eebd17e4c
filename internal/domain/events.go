package domain

// EventKind identifies what an engine event reports.
type EventKind string

const (
	EventQuestionPresented EventKind = "questionPresented"
	EventAnswerScored      EventKind = "answerScored"
	EventLevelCompleted    EventKind = "levelCompleted"
	EventQuizFinished      EventKind = "quizFinished"
)

// Event is emitted by the engine to its presenter. Only the fields relevant to Kind are set.
type Event struct {
	Kind          EventKind     `json:"kind"`
	Level         int           `json:"level"`
	Question      *Question     `json:"question,omitempty"`
	QuestionIndex int           `json:"questionIndex"`
	TotalInLevel  int           `json:"totalInLevel"`
	Attempt       *Attempt      `json:"attempt,omitempty"`
	RunningScore  int           `json:"runningScore"`
	Outcome       *LevelOutcome `json:"outcome,omitempty"`
	Summary       *Summary      `json:"summary,omitempty"`
}

// QuestionView is a question as players and observers see it, without the answer key.
type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// PublicEvent is an Event safe to send outside the engine.
type PublicEvent struct {
	Event
	Question *QuestionView `json:"question,omitempty"`
}

// Public strips the correct option from a presented question.
func (e Event) Public() PublicEvent {
	view := PublicEvent{Event: e}
	if e.Question != nil {
		view.Question = &QuestionView{Text: e.Question.Text, Options: e.Question.Options}
	}
	return view
}
