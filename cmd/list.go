package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/store"
)

var (
	listRecipient string
	listState     string
	listCategory  string
	listLimit     int
	listJSON      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked achievements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Registry.List(ctx, store.AchievementFilter{
			Recipient: listRecipient,
			State:     model.AchievementState(listState),
			Category:  model.Category(listCategory),
			Limit:     listLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list achievements")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No achievements found.")
			return nil
		}

		if listJSON {
			return printJSON(records)
		}

		formatAchievements(os.Stdout, records)
		return nil
	},
}

func formatAchievements(w io.Writer, records []model.ClaimableAchievement) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tTIER\tTHRESHOLD\tRECIPIENT\tCREATED")
	for _, a := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.State,
			a.Tier,
			model.FormatAmount(a.Threshold),
			a.Recipient,
			a.CreatedAt.Format(time.RFC3339),
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	listCmd.Flags().StringVar(&listRecipient, "recipient", "", "filter by recipient")
	listCmd.Flags().StringVar(&listState, "state", "", "filter by state (claimable, claimed, minted, failed)")
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by category (pool or individual)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum rows to return")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(listCmd)
}
