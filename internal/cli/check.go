package cli

import (
	"fmt"
	"io"
	"sort"

	"edukids-quiz/internal/app"
	"edukids-quiz/internal/config"
	"edukids-quiz/internal/domain"
	"edukids-quiz/internal/infra/bankfile"
	"github.com/spf13/cobra"
)

// NewCheckCmd validates a bank file and prints the pass mark each level will use.
func NewCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [bank file]",
		Short: "Validate a question bank and show effective pass marks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			path := bankPath(cfg)
			if len(args) == 1 {
				path = args[0]
			}
			policy, err := cfg.Policy()
			if err != nil {
				return err
			}
			banks, err := bankfile.Load(path)
			if err != nil {
				return err
			}
			if defects := checkBanks(cmd.OutOrStdout(), banks, policy); defects > 0 {
				return fmt.Errorf("%s: %d invalid questions", path, defects)
			}
			return nil
		},
	}
}

// checkBanks writes one line per level and one per defective question, returning the defect count.
func checkBanks(w io.Writer, banks map[string]domain.Bank, policy app.LevelPolicy) int {
	subjects := make([]string, 0, len(banks))
	for subject := range banks {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	defects := 0
	for _, subject := range subjects {
		fmt.Fprintf(w, "%s\n", subject)
		for i, questions := range banks[subject].Levels {
			index := i + 1
			rule := policy.Rule(index, len(questions))
			required := app.EffectiveRequired(rule, len(questions))
			fmt.Fprintf(w, "  level %d: %d questions, pass mark %d (configured %d of %d)\n",
				index, len(questions), required, rule.PassThreshold, rule.RequiredCount)
			for j, q := range questions {
				if err := app.ValidateQuestion(index, j, q); err != nil {
					defects++
					fmt.Fprintf(w, "    %v\n", err)
				}
			}
		}
	}
	return defects
}
