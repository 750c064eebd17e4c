package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service      *app.PlayService
	questionTime time.Duration
	upgrader     websocket.Upgrader
}

// NewWSHandler builds the play endpoints. A zero questionTime disables the server-side question timer.
func NewWSHandler(service *app.PlayService, questionTime time.Duration) *WSHandler {
	return &WSHandler{
		service:      service,
		questionTime: questionTime,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Code: errorCode(err)}}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidState):
		return "invalidState"
	case errors.Is(err, domain.ErrLevelNotFound):
		return "levelNotFound"
	case errors.Is(err, domain.ErrInvalidQuestion):
		return "invalidQuestion"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "sessionNotFound"
	case errors.Is(err, domain.ErrBankNotFound):
		return "bankNotFound"
	default:
		return ""
	}
}

// ServeWS upgrades HTTP requests to websockets and runs one learner's quiz over the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	subject := r.URL.Query().Get("subject")
	if playerID == "" || subject == "" {
		http.Error(w, "missing playerId or subject", http.StatusBadRequest)
		return
	}
	level := 0
	if raw := r.URL.Query().Get("level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid level", http.StatusBadRequest)
			return
		}
		level = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	begun, err := h.service.Begin(ctx, playerID, subject, level)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer h.service.End(context.Background(), playerID, subject, begun.RunID)

	send := make(chan outboundMessage[any], 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				// keep draining so the loop below never blocks; closing unblocks the reader
				log.Printf("ws write error: %v", err)
				failed = true
				_ = conn.Close()
			}
		}
	}()

	inbound := make(chan inboundMessage)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			inbound <- msg
		}
	}()

	// The timer is owned by this loop. It restarts when a question is presented
	// and stops once the run leaves InLevel; other results leave a running timer alone.
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	armTimer := func() {
		stopTimer()
		if h.questionTime > 0 {
			timer = time.NewTimer(h.questionTime)
			timerC = timer.C
		}
	}
	followState := func(res app.PlayResult) {
		switch {
		case res.State.Status != domain.StatusInLevel:
			stopTimer()
		case presentsQuestion(res.Events) || timer == nil:
			armTimer()
		}
	}
	deliver := func(res app.PlayResult) {
		for _, ev := range res.Events {
			send <- outboundMessage[any]{Type: string(ev.Kind), Payload: ev.Public()}
		}
		send <- outboundMessage[any]{Type: "state", Payload: res.State}
		followState(res)
	}

	deliver(begun)

loop:
	for {
		select {
		case <-readerDone:
			break loop
		case <-timerC:
			timer, timerC = nil, nil
			res, err := h.service.Timeout(ctx, playerID, subject)
			if err != nil {
				send <- errorMessage(err)
				// restart the clock if the question is still open
				if current, err := h.service.State(ctx, playerID, subject); err == nil && current.State.Status == domain.StatusInLevel {
					armTimer()
				}
				continue
			}
			deliver(res)
		case msg := <-inbound:
			res, err := h.handle(ctx, playerID, subject, msg)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			deliver(res)
		}
	}

	stopTimer()
	close(send)
	<-writerDone
}

func presentsQuestion(events []domain.Event) bool {
	for _, ev := range events {
		if ev.Kind == domain.EventQuestionPresented {
			return true
		}
	}
	return false
}

func (h *WSHandler) handle(ctx context.Context, playerID, subject string, msg inboundMessage) (app.PlayResult, error) {
	switch msg.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return app.PlayResult{}, errors.New("invalid answer payload")
		}
		return h.service.Answer(ctx, playerID, subject, payload.Option)
	case "timeout":
		return h.service.Timeout(ctx, playerID, subject)
	case "advance":
		return h.service.Advance(ctx, playerID, subject)
	case "retry":
		return h.service.Retry(ctx, playerID, subject)
	case "reset":
		return h.service.Reset(ctx, playerID, subject)
	case "state":
		return h.service.State(ctx, playerID, subject)
	default:
		return app.PlayResult{}, errors.New("unsupported message type")
	}
}

// ServeWatch streams every event of a running session to an observer, e.g. a parent dashboard.
func (h *WSHandler) ServeWatch(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	subject := r.URL.Query().Get("subject")
	if playerID == "" || subject == "" {
		http.Error(w, "missing playerId or subject", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), playerID, subject)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: string(ev.Kind), Payload: ev.Public()}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}

// ServeProgress returns the stored progress of a player as JSON.
func (h *WSHandler) ServeProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	playerID := r.URL.Query().Get("playerId")
	subject := r.URL.Query().Get("subject")
	if playerID == "" || subject == "" {
		http.Error(w, "missing playerId or subject", http.StatusBadRequest)
		return
	}
	progress, err := h.service.Progress(r.Context(), playerID, subject)
	if err != nil {
		log.Printf("load progress %s/%s: %v", playerID, subject, err)
		http.Error(w, "failed to load progress", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(progress)
}
