package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"

	"edukids-quiz/internal/config"
	"edukids-quiz/internal/infra/bankfile"
	pgstore "edukids-quiz/internal/infra/postgres"
	pgmigrations "edukids-quiz/internal/infra/postgres/migrations"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations and optionally seeds question banks.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			if seed == "" {
				return nil
			}
			return seedBanks(cmd.Context(), cfg, seed)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "question bank file to load into postgres")
	return cmd
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Printf("no new migrations")
		return nil
	}
	log.Printf("migrations applied: %s", group)
	return nil
}

func seedBanks(ctx context.Context, cfg config.Config, path string) error {
	banks, err := bankfile.Load(path)
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	subjects := make([]string, 0, len(banks))
	for subject := range banks {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	loader := pgstore.NewBankLoader(pool)
	for _, subject := range subjects {
		if err := loader.SaveBank(ctx, banks[subject]); err != nil {
			return err
		}
		log.Printf("seeded bank %s (%d levels)", subject, len(banks[subject].Levels))
	}
	return nil
}
