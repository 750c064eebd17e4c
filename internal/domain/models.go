package domain

import "time"

// Question models a multiple-choice question whose answer is matched by option text.
type Question struct {
	Text          string   `json:"text" yaml:"text"`
	Options       []string `json:"options" yaml:"options"`
	CorrectOption string   `json:"correctOption" yaml:"correctOption"`
}

// Level is an ordered set of questions with its own pass mark.
type Level struct {
	Index         int        `json:"index"`
	Questions     []Question `json:"questions"`
	RequiredCount int        `json:"requiredCount"`
	PassThreshold int        `json:"passThreshold"`
}

// Bank is a subject's question bank. Levels[0] holds level 1.
type Bank struct {
	Subject string       `json:"subject" yaml:"subject"`
	Levels  [][]Question `json:"levels" yaml:"levels"`
}

// Attempt records one answered or timed-out question. Selected is nil on timeout.
type Attempt struct {
	QuestionIndex int     `json:"questionIndex"`
	Selected      *string `json:"selected"`
	IsCorrect     bool    `json:"isCorrect"`
}

// TimedOut reports whether the question expired without an answer.
func (a Attempt) TimedOut() bool {
	return a.Selected == nil
}

// LevelOutcome is computed once when a level run completes.
type LevelOutcome struct {
	LevelIndex     int  `json:"levelIndex"`
	Scored         int  `json:"scored"`
	Total          int  `json:"total"`
	RequiredToPass int  `json:"requiredToPass"`
	Passed         bool `json:"passed"`
}

// Summary aggregates every level outcome of a run.
type Summary struct {
	TotalCorrect   int            `json:"totalCorrect"`
	TotalQuestions int            `json:"totalQuestions"`
	PerLevel       []LevelOutcome `json:"perLevel"`
}

// Status is the engine state machine position.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusInLevel       Status = "inLevel"
	StatusLevelComplete Status = "levelComplete"
	StatusFinished      Status = "finished"
)

// RunState is the mutable core of a quiz run.
type RunState struct {
	CurrentLevel    int       `json:"currentLevel"`
	CurrentQuestion int       `json:"currentQuestion"`
	Score           int       `json:"score"`
	Attempts        []Attempt `json:"attempts"`
	Status          Status    `json:"status"`
}

// LevelRecord is the persisted history of one level for one player.
type LevelRecord struct {
	LevelIndex     int       `json:"levelIndex"`
	BestScore      int       `json:"bestScore"`
	Total          int       `json:"total"`
	RequiredToPass int       `json:"requiredToPass"`
	Passed         bool      `json:"passed"`
	Attempts       int       `json:"attempts"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Merge folds a new outcome into the record. Passed is sticky and the best score wins.
func (r LevelRecord) Merge(outcome LevelOutcome, at time.Time) LevelRecord {
	r.LevelIndex = outcome.LevelIndex
	r.Attempts++
	if r.Attempts == 1 || outcome.Scored >= r.BestScore {
		r.BestScore = outcome.Scored
		r.Total = outcome.Total
		r.RequiredToPass = outcome.RequiredToPass
	}
	r.Passed = r.Passed || outcome.Passed
	r.UpdatedAt = at
	return r
}

// Progress is a player's pass/fail history for one subject.
type Progress struct {
	PlayerID string              `json:"playerId"`
	Subject  string              `json:"subject"`
	Levels   map[int]LevelRecord `json:"levels"`
}

// ResumeLevel returns the first level in 1..levelCount that has not been passed.
// When every level is passed it returns levelCount so the learner can replay the last one.
func (p Progress) ResumeLevel(levelCount int) int {
	if levelCount < 1 {
		return 1
	}
	for i := 1; i <= levelCount; i++ {
		if rec, ok := p.Levels[i]; !ok || !rec.Passed {
			return i
		}
	}
	return levelCount
}
