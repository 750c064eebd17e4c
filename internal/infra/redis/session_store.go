package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Engines stay in a local map; they hold the loaded level and cannot be rebuilt from Redis.
//   - Redis carries a JSON snapshot of every session's run state under quiz:session:{key},
//     refreshed with the TTL on each change, so other processes can inspect live runs.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Get(key string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	return session, ok
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.Key()] = session
	s.mu.Unlock()
	s.Touch(session)
}

// Touch writes the session snapshot; failures are logged and otherwise ignored.
func (s *SessionStore) Touch(session *app.Session) {
	raw, err := json.Marshal(session.Snapshot())
	if err != nil {
		log.Printf("marshal session %s: %v", session.Key(), err)
		return
	}
	if err := s.client.Set(context.Background(), s.key(session.Key()), raw, s.ttl).Err(); err != nil {
		log.Printf("store session %s: %v", session.Key(), err)
	}
}

func (s *SessionStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	_ = s.client.Del(context.Background(), s.key(key)).Err()
}

// LoadSnapshot reads the stored run state of a session, possibly written by another process.
// PlayService.State falls back to it for sessions this process does not host.
func (s *SessionStore) LoadSnapshot(ctx context.Context, key string) (app.PlayResult, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.PlayResult{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return app.PlayResult{}, fmt.Errorf("load session %s: %w", key, err)
	}
	var snapshot app.PlayResult
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return app.PlayResult{}, err
	}
	return snapshot, nil
}

func (s *SessionStore) key(key string) string {
	return "quiz:session:" + key
}
