package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/registry"
	"github.com/impactpool/milestone-cli/internal/store"
)

var (
	claimAllRecipient string
	claimRetryFailed  bool
)

var claimCmd = &cobra.Command{
	Use:   "claim [achievement-id]",
	Short: "Claim an achievement and mint its certificate",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && claimAllRecipient == "" {
			return eris.New("provide an achievement id or --recipient to claim all")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if len(ids) == 0 {
			claimable, err := env.Registry.ListClaimable(ctx, claimAllRecipient)
			if err != nil {
				return eris.Wrap(err, "list claimable")
			}
			if claimRetryFailed {
				failed, err := env.Registry.List(ctx, store.AchievementFilter{
					Recipient: claimAllRecipient,
					State:     model.StateFailed,
				})
				if err != nil {
					return eris.Wrap(err, "list failed")
				}
				claimable = append(claimable, failed...)
			}
			if len(claimable) == 0 {
				fmt.Fprintln(os.Stderr, "No claimable achievements.")
				return nil
			}
			for _, a := range claimable {
				ids = append(ids, a.ID)
			}
		}

		var claimed []model.ClaimableAchievement
		for _, id := range ids {
			rec, err := env.Registry.Claim(ctx, id)
			switch {
			case eris.Is(err, registry.ErrNotFound):
				return eris.Errorf("achievement %s not found", id)
			case eris.Is(err, registry.ErrAlreadyFinalized):
				zap.L().Info("already minted, skipping", zap.String("id", id))
				continue
			case err != nil:
				return eris.Wrapf(err, "claim %s", id)
			}

			if rec.State == model.StateFailed {
				zap.L().Warn("issuance failed, achievement can be retried",
					zap.String("id", id),
					zap.String("detail", rec.FailureDetail),
				)
			} else if env.CRM != nil {
				env.CRM.RecordMint(ctx, *rec)
			}

			claimed = append(claimed, *rec)
		}

		return printJSON(claimed)
	},
}

func init() {
	claimCmd.Flags().StringVar(&claimAllRecipient, "recipient", "", "claim every claimable achievement for this recipient")
	claimCmd.Flags().BoolVar(&claimRetryFailed, "retry-failed", false, "with --recipient, also retry previously failed claims")
	rootCmd.AddCommand(claimCmd)
}
