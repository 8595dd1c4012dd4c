package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/milestone"
	"github.com/impactpool/milestone-cli/internal/model"
)

var (
	reportSubject   string
	reportCategory  string
	reportTotal     float64
	reportRecipient string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a new cumulative total for a subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		recipient := reportRecipient
		if recipient == "" {
			recipient = reportSubject
		}

		created, err := env.Orchestrator.OnNewTotal(ctx, milestone.TotalReport{
			Subject:   reportSubject,
			Category:  model.Category(reportCategory),
			NewTotal:  reportTotal,
			Recipient: recipient,
		})
		if err != nil {
			return eris.Wrap(err, "report total")
		}

		zap.L().Info("total reported",
			zap.String("subject", reportSubject),
			zap.Float64("total", reportTotal),
			zap.Int("new_achievements", len(created)),
		)

		return printJSON(created)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportSubject, "subject", "", "subject the total belongs to (required)")
	reportCmd.Flags().StringVar(&reportCategory, "category", string(model.CategoryIndividual), "milestone category (pool or individual)")
	reportCmd.Flags().Float64Var(&reportTotal, "total", 0, "new cumulative total (required)")
	reportCmd.Flags().StringVar(&reportRecipient, "recipient", "", "certificate recipient address (defaults to subject)")
	reportCmd.MarkFlagRequired("subject") //nolint:errcheck
	reportCmd.MarkFlagRequired("total")   //nolint:errcheck
	rootCmd.AddCommand(reportCmd)
}
