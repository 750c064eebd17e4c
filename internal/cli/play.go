package cli

import (
	"fmt"
	"os"

	"edukids-quiz/internal/config"
	"edukids-quiz/internal/tui"
	"github.com/spf13/cobra"
)

// NewPlayCmd runs a quiz in the terminal against a local bank file.
func NewPlayCmd(configPath *string) *cobra.Command {
	var (
		bankFile     string
		subject      string
		player       string
		level        int
		progressPath string
		noColor      bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if bankFile == "" {
				bankFile = bankPath(cfg)
			}
			if subject == "" {
				subject = cfg.Bank.Subject
			}
			if subject == "" {
				return fmt.Errorf("no subject given; use --subject or bank.subject")
			}
			if progressPath == "" {
				progressPath = cfg.SQLite.Path
			}
			if player == "" {
				player = os.Getenv("USER")
			}
			if player == "" {
				player = "learner"
			}

			st, err := buildLocalStack(cfg, bankFile, progressPath)
			if err != nil {
				return err
			}
			defer st.Close()

			return tui.Run(cmd.Context(), st.service, tui.Options{
				PlayerID:     player,
				Subject:      subject,
				Level:        level,
				QuestionTime: cfg.QuestionTime(),
				NoColor:      noColor,
			})
		},
	}
	cmd.Flags().StringVar(&bankFile, "bank", "", "question bank file (defaults to bank.path)")
	cmd.Flags().StringVar(&subject, "subject", "", "subject to play (defaults to bank.subject)")
	cmd.Flags().StringVar(&player, "player", "", "player name used for saved progress")
	cmd.Flags().IntVar(&level, "level", 0, "level to start at; 0 resumes from saved progress")
	cmd.Flags().StringVar(&progressPath, "progress", "", "sqlite file for saved progress (defaults to sqlite.path)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colors")
	return cmd
}
