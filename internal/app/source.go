package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"edukids-quiz/internal/domain"
)

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, subject string) (domain.Bank, error)
}

// BankSourceOptions controls how levels are drawn from a bank.
type BankSourceOptions struct {
	Shuffle bool
	// Seed makes shuffling deterministic when non-zero.
	Seed int64
}

// BankSource is a QuestionSource over one subject's bank.
type BankSource struct {
	repo    BankRepository
	subject string
	shuffle bool

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBankSource(repo BankRepository, subject string, opts BankSourceOptions) *BankSource {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &BankSource{
		repo:    repo,
		subject: subject,
		shuffle: opts.Shuffle,
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

// Level returns a fresh copy of the level, reshuffled on every call when shuffling is on.
func (s *BankSource) Level(ctx context.Context, index int) (domain.Level, error) {
	bank, err := s.repo.GetBank(ctx, s.subject)
	if err != nil {
		return domain.Level{}, err
	}
	if index < 1 || index > len(bank.Levels) {
		return domain.Level{}, &domain.LevelNotFoundError{Level: index}
	}

	src := bank.Levels[index-1]
	questions := make([]domain.Question, len(src))
	for i, q := range src {
		questions[i] = domain.Question{
			Text:          q.Text,
			Options:       append([]string(nil), q.Options...),
			CorrectOption: q.CorrectOption,
		}
	}
	if s.shuffle {
		s.shuffleQuestions(questions)
	}
	return domain.Level{Index: index, Questions: questions}, nil
}

// LevelCount returns the number of levels in the bank.
func (s *BankSource) LevelCount(ctx context.Context) (int, error) {
	bank, err := s.repo.GetBank(ctx, s.subject)
	if err != nil {
		return 0, err
	}
	return len(bank.Levels), nil
}

func (s *BankSource) shuffleQuestions(questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(len(questions), func(i, j int) { questions[i], questions[j] = questions[j], questions[i] })
	for _, q := range questions {
		opts := q.Options
		s.rnd.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	}
}
