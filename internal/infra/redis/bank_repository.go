package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"edukids-quiz/internal/domain"
	"edukids-quiz/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankRepository caches banks in Redis and falls back to a loader on cache miss.
// Each level is stored as a JSON list entry: RPUSH bank:{subject}:levels {levelJSON}
type BankRepository struct {
	client *redis.Client
	loader memory.BankLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankRepository(client *redis.Client, loader memory.BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, subject string) (domain.Bank, error) {
	key := r.levelsKey(subject)

	if bank, ok := r.cached(ctx, subject, key); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(subject, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.cached(ctx, subject, key); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, subject)
		if err != nil {
			return domain.Bank{}, err
		}

		values := make([]interface{}, 0, len(bank.Levels))
		for _, level := range bank.Levels {
			raw, err := json.Marshal(level)
			if err != nil {
				return domain.Bank{}, fmt.Errorf("marshal level: %w", err)
			}
			values = append(values, raw)
		}

		// Empty banks are not cached; a list key cannot hold zero entries.
		if len(values) > 0 {
			ttl := r.ttlWithJitter()
			pipe := r.client.TxPipeline()
			pipe.Del(ctx, key)
			pipe.RPush(ctx, key, values...)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			_, _ = pipe.Exec(ctx)
		}

		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (r *BankRepository) cached(ctx context.Context, subject, key string) (domain.Bank, bool) {
	raw, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return domain.Bank{}, false
	}
	bank := domain.Bank{Subject: subject, Levels: make([][]domain.Question, 0, len(raw))}
	for _, entry := range raw {
		var level []domain.Question
		if err := json.Unmarshal([]byte(entry), &level); err != nil {
			return domain.Bank{}, false
		}
		bank.Levels = append(bank.Levels, level)
	}
	return bank, true
}

func (r *BankRepository) levelsKey(subject string) string {
	return "bank:" + subject + ":levels"
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
