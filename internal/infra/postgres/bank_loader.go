package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"edukids-quiz/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader loads question bank JSONB from Postgres.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context, subject string) (domain.Bank, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE subject=$1`, subject).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bank{}, domain.ErrBankNotFound
	}
	if err != nil {
		return domain.Bank{}, fmt.Errorf("load bank: %w", err)
	}
	var bank domain.Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return domain.Bank{}, fmt.Errorf("unmarshal bank: %w", err)
	}
	bank.Subject = subject
	return bank, nil
}

// SaveBank upserts a bank; used to seed the table from bank files.
func (l *BankLoader) SaveBank(ctx context.Context, bank domain.Bank) error {
	raw, err := json.Marshal(bank)
	if err != nil {
		return fmt.Errorf("marshal bank: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO question_banks (subject, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (subject) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		bank.Subject, raw)
	if err != nil {
		return fmt.Errorf("save bank %s: %w", bank.Subject, err)
	}
	return nil
}
