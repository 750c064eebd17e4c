package app

import (
	"context"
	"log"
	"sync"
	"time"

	"edukids-quiz/internal/domain"
	"github.com/google/uuid"
)

// SessionRepository abstracts how play sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Get(key string) (*Session, bool)
	Put(session *Session)
	// Touch is called after every state change so stores can refresh liveness or snapshots.
	Touch(session *Session)
	Delete(key string)
}

// SnapshotLoader is implemented by session stores that can read run state written by another process.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, key string) (PlayResult, error)
}

// ProgressRepository persists level outcomes per player and subject.
type ProgressRepository interface {
	RecordOutcome(ctx context.Context, record OutcomeRecord) error
	GetProgress(ctx context.Context, playerID, subject string) (domain.Progress, error)
}

// OutcomeRecord is one completed level run as handed to a ProgressRepository.
type OutcomeRecord struct {
	RunID      string
	PlayerID   string
	Subject    string
	Outcome    domain.LevelOutcome
	RecordedAt time.Time
}

// SessionEvent is an engine event tagged with the session it came from.
type SessionEvent struct {
	RunID    string       `json:"runId"`
	PlayerID string       `json:"playerId"`
	Subject  string       `json:"subject"`
	Event    domain.Event `json:"event"`
}

// EventSink receives every session event after the engine call that produced it returns.
type EventSink interface {
	Publish(ctx context.Context, event SessionEvent) error
}

// PlayResult is what a caller gets back from every play operation.
type PlayResult struct {
	RunID  string          `json:"runId"`
	State  domain.RunState `json:"state"`
	Events []domain.Event  `json:"events"`
}

// PlayServiceOptions configures how sessions build their engines.
type PlayServiceOptions struct {
	Policy LevelPolicy
	Source BankSourceOptions
	Sink   EventSink
	Clock  func() time.Time
}

// PlayService hosts one quiz engine per player and subject.
type PlayService struct {
	sessions SessionRepository
	banks    BankRepository
	progress ProgressRepository
	policy   LevelPolicy
	source   BankSourceOptions
	sink     EventSink
	now      func() time.Time
}

func NewPlayService(sessions SessionRepository, banks BankRepository, progress ProgressRepository, opts PlayServiceOptions) *PlayService {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &PlayService{
		sessions: sessions,
		banks:    banks,
		progress: progress,
		policy:   opts.Policy,
		source:   opts.Source,
		sink:     opts.Sink,
		now:      now,
	}
}

// SessionKey identifies the session of a player for a subject.
func SessionKey(playerID, subject string) string {
	return playerID + ":" + subject
}

// Begin starts a new run for the player. Level 0 resumes at the first level not yet passed.
func (s *PlayService) Begin(ctx context.Context, playerID, subject string, level int) (PlayResult, error) {
	source := NewBankSource(s.banks, subject, s.source)
	count, err := source.LevelCount(ctx)
	if err != nil {
		return PlayResult{}, err
	}
	if level == 0 {
		progress, err := s.progress.GetProgress(ctx, playerID, subject)
		if err != nil {
			return PlayResult{}, err
		}
		level = progress.ResumeLevel(count)
	}

	key := SessionKey(playerID, subject)
	session, ok := s.sessions.Get(key)
	if !ok {
		session = newSession(key, playerID, subject)
	}

	engine := NewEngine(source, s.policy, session)
	result, err := session.restart(engine, uuid.NewString(), func(e *Engine) error {
		return e.Start(ctx, level)
	})
	if err != nil {
		return PlayResult{}, err
	}
	if !ok {
		s.sessions.Put(session)
	}
	return s.afterApply(ctx, session, result)
}

// Answer submits the selected option text for the current question.
func (s *PlayService) Answer(ctx context.Context, playerID, subject, option string) (PlayResult, error) {
	return s.apply(ctx, playerID, subject, func(e *Engine) error {
		return e.Answer(option)
	})
}

// Timeout marks the current question as expired.
func (s *PlayService) Timeout(ctx context.Context, playerID, subject string) (PlayResult, error) {
	return s.apply(ctx, playerID, subject, func(e *Engine) error {
		return e.Timeout()
	})
}

// Advance moves to the next level after a pass.
func (s *PlayService) Advance(ctx context.Context, playerID, subject string) (PlayResult, error) {
	return s.apply(ctx, playerID, subject, func(e *Engine) error {
		return e.AdvanceLevel(ctx)
	})
}

// Retry replays the level that was just completed.
func (s *PlayService) Retry(ctx context.Context, playerID, subject string) (PlayResult, error) {
	return s.apply(ctx, playerID, subject, func(e *Engine) error {
		return e.RetryLevel(ctx)
	})
}

// Reset abandons the current run; the session stays open and idle.
func (s *PlayService) Reset(ctx context.Context, playerID, subject string) (PlayResult, error) {
	return s.apply(ctx, playerID, subject, func(e *Engine) error {
		e.Reset()
		return nil
	})
}

// State returns the current run state of a session. Sessions hosted by another
// process are answered from the store snapshot when the store supports it.
func (s *PlayService) State(ctx context.Context, playerID, subject string) (PlayResult, error) {
	key := SessionKey(playerID, subject)
	session, ok := s.sessions.Get(key)
	if !ok {
		if loader, ok := s.sessions.(SnapshotLoader); ok {
			return loader.LoadSnapshot(ctx, key)
		}
		return PlayResult{}, domain.ErrSessionNotFound
	}
	return session.snapshot(), nil
}

// Progress returns the stored pass/fail history of a player.
func (s *PlayService) Progress(ctx context.Context, playerID, subject string) (domain.Progress, error) {
	return s.progress.GetProgress(ctx, playerID, subject)
}

// Subscribe returns a channel that receives every event of a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *PlayService) Subscribe(_ context.Context, playerID, subject string) (<-chan domain.Event, func(), error) {
	session, ok := s.sessions.Get(SessionKey(playerID, subject))
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// End drops the session and closes its subscriptions, but only while runID is
// still the session's current run; a later Begin for the same player and
// subject keeps the session alive.
func (s *PlayService) End(_ context.Context, playerID, subject, runID string) {
	key := SessionKey(playerID, subject)
	session, ok := s.sessions.Get(key)
	if !ok {
		return
	}
	if !session.closeRun(runID) {
		return
	}
	s.sessions.Delete(key)
}

func (s *PlayService) apply(ctx context.Context, playerID, subject string, op func(*Engine) error) (PlayResult, error) {
	session, ok := s.sessions.Get(SessionKey(playerID, subject))
	if !ok {
		return PlayResult{}, domain.ErrSessionNotFound
	}
	result, err := session.apply(op)
	if err != nil {
		return PlayResult{}, err
	}
	return s.afterApply(ctx, session, result)
}

// afterApply persists completed levels and forwards events once the engine call has returned.
func (s *PlayService) afterApply(ctx context.Context, session *Session, result PlayResult) (PlayResult, error) {
	s.sessions.Touch(session)
	for _, ev := range result.Events {
		if ev.Kind == domain.EventLevelCompleted && ev.Outcome != nil {
			err := s.progress.RecordOutcome(ctx, OutcomeRecord{
				RunID:      result.RunID,
				PlayerID:   session.playerID,
				Subject:    session.subject,
				Outcome:    *ev.Outcome,
				RecordedAt: s.now(),
			})
			if err != nil {
				// the engine has already moved on; callers still need the events
				log.Printf("record level %d outcome for %s failed: %v", ev.Outcome.LevelIndex, session.key, err)
			}
		}
		if s.sink != nil {
			sessionEvent := SessionEvent{RunID: result.RunID, PlayerID: session.playerID, Subject: session.subject, Event: ev}
			if err := s.sink.Publish(ctx, sessionEvent); err != nil {
				log.Printf("publish %s event failed: %v", ev.Kind, err)
			}
		}
	}
	return result, nil
}

// Session is one player's run of a subject together with its subscribers.
type Session struct {
	key      string
	playerID string
	subject  string

	mu          sync.Mutex
	runID       string
	engine      *Engine
	pending     []domain.Event
	subscribers map[chan domain.Event]struct{}
}

func newSession(key, playerID, subject string) *Session {
	return &Session{
		key:         key,
		playerID:    playerID,
		subject:     subject,
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// Key returns the session store key.
func (s *Session) Key() string {
	return s.key
}

// Snapshot returns the run state for stores that persist it.
func (s *Session) Snapshot() PlayResult {
	return s.snapshot()
}

// Present collects engine events; it is only called while s.mu is held.
func (s *Session) Present(event domain.Event) {
	s.pending = append(s.pending, event)
	s.broadcastLocked(event)
}

func (s *Session) restart(engine *Engine, runID string, op func(*Engine) error) (PlayResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	if err := op(engine); err != nil {
		s.pending = nil
		return PlayResult{}, err
	}
	s.engine = engine
	s.runID = runID
	return s.resultLocked(), nil
}

func (s *Session) apply(op func(*Engine) error) (PlayResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return PlayResult{}, domain.ErrSessionNotFound
	}
	s.pending = nil
	if err := op(s.engine); err != nil {
		s.pending = nil
		return PlayResult{}, err
	}
	return s.resultLocked(), nil
}

func (s *Session) resultLocked() PlayResult {
	events := s.pending
	s.pending = nil
	return PlayResult{RunID: s.runID, State: s.engine.State(), Events: events}
}

func (s *Session) snapshot() PlayResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := PlayResult{RunID: s.runID, State: domain.RunState{Status: domain.StatusIdle}}
	if s.engine != nil {
		result.State = s.engine.State()
	}
	return result
}

func (s *Session) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// closeRun closes all subscriptions if runID is the current run and reports whether it did.
func (s *Session) closeRun(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return false
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	return true
}

func (s *Session) broadcastLocked(event domain.Event) {
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// slow subscriber: drop its oldest event
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
