package amqp

import (
	"encoding/json"
	"testing"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
)

func TestBuildMessage(t *testing.T) {
	event := app.SessionEvent{
		RunID:    "run-1",
		PlayerID: "kid-1",
		Subject:  "Mathematics",
		Event: domain.Event{
			Kind:  domain.EventLevelCompleted,
			Level: 2,
			Outcome: &domain.LevelOutcome{
				LevelIndex: 2, Scored: 56, Total: 60, RequiredToPass: 55, Passed: true,
			},
		},
	}

	key, body, err := BuildMessage(event)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if key != "quiz.levelCompleted" {
		t.Fatalf("unexpected routing key %q", key)
	}

	var decoded struct {
		Type     string `json:"type"`
		RunID    string `json:"runId"`
		PlayerID string `json:"playerId"`
		Subject  string `json:"subject"`
		Payload  struct {
			Level   int                  `json:"level"`
			Outcome *domain.LevelOutcome `json:"outcome"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != "levelCompleted" || decoded.RunID != "run-1" || decoded.PlayerID != "kid-1" || decoded.Subject != "Mathematics" {
		t.Fatalf("unexpected envelope %+v", decoded)
	}
	if decoded.Payload.Level != 2 || decoded.Payload.Outcome == nil || !decoded.Payload.Outcome.Passed {
		t.Fatalf("unexpected payload %+v", decoded.Payload)
	}
}

func TestBuildMessageHidesAnswerKey(t *testing.T) {
	event := app.SessionEvent{
		RunID:    "run-1",
		PlayerID: "kid-1",
		Subject:  "Mathematics",
		Event: domain.Event{
			Kind:         domain.EventQuestionPresented,
			Level:        1,
			Question:     &domain.Question{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: "4"},
			TotalInLevel: 2,
		},
	}

	key, body, err := BuildMessage(event)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if key != "quiz.questionPresented" {
		t.Fatalf("unexpected routing key %q", key)
	}
	var decoded struct {
		Payload struct {
			Question map[string]any `json:"question"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Payload.Question["text"] != "What is 2 + 2?" {
		t.Fatalf("expected question text, got %v", decoded.Payload.Question)
	}
	if _, leaked := decoded.Payload.Question["correctOption"]; leaked {
		t.Fatalf("answer key must not be published: %s", body)
	}
}
