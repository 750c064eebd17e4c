package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/config"
	"edukids-quiz/internal/infra/amqp"
	"edukids-quiz/internal/infra/bankfile"
	"edukids-quiz/internal/infra/memory"
	pgstore "edukids-quiz/internal/infra/postgres"
	redisstore "edukids-quiz/internal/infra/redis"
	"edukids-quiz/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// stack is the play service together with what must be released on shutdown.
type stack struct {
	service *app.PlayService
	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServerStack wires every backend that is configured; absent sections fall back to memory.
func buildServerStack(ctx context.Context, cfg config.Config) (*stack, error) {
	st := &stack{}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
	}

	var loader memory.BankLoader = bankfile.NewLoader(bankPath(cfg))
	if pool != nil {
		loader = pgstore.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks app.BankRepository
	if redisClient != nil {
		banks = redisstore.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var progress app.ProgressRepository
	switch {
	case pool != nil:
		progress = pgstore.NewProgressStore(pool)
	case redisClient != nil:
		progress = redisstore.NewProgressStore(redisClient)
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = store.Close() })
		progress = store
	default:
		progress = memory.NewProgressStore()
	}

	opts := app.PlayServiceOptions{
		Policy: policy,
		Source: app.BankSourceOptions{Shuffle: cfg.Bank.Shuffle},
	}
	if cfg.RabbitMQ.URL != "" {
		exchange := cfg.RabbitMQ.Exchange
		if exchange == "" {
			exchange = "quiz.events"
		}
		publisher, err := amqp.NewPublisher(cfg.RabbitMQ.URL, exchange)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = publisher.Close() })
		opts.Sink = publisher
	} else {
		log.Printf("rabbitmq url not configured, event publishing disabled")
	}

	st.service = app.NewPlayService(sessions, banks, progress, opts)
	return st, nil
}

// buildLocalStack serves banks from a file and keeps progress in SQLite when a path is given.
func buildLocalStack(cfg config.Config, bankFile, progressPath string) (*stack, error) {
	st := &stack{}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	var progress app.ProgressRepository = memory.NewProgressStore()
	if progressPath != "" {
		store, err := sqlite.Open(progressPath)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = store.Close() })
		progress = store
	}

	banks := memory.NewBankRepository(bankfile.NewLoader(bankFile), config.TTLDuration(cfg.Bank.TTL, 10*time.Minute))
	st.service = app.NewPlayService(memory.NewSessionStore(), banks, progress, app.PlayServiceOptions{
		Policy: policy,
		Source: app.BankSourceOptions{Shuffle: cfg.Bank.Shuffle},
	})
	return st, nil
}

func bankPath(cfg config.Config) string {
	if cfg.Bank.Path != "" {
		return cfg.Bank.Path
	}
	return "config/questions.json"
}
