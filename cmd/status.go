package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/monitoring"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize achievement and pool state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Collector.Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		if statusJSON {
			return printJSON(snap)
		}

		formatStatus(os.Stdout, snap)
		return nil
	},
}

func formatStatus(w io.Writer, snap *monitoring.MetricsSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Achievements\t%d\n", snap.AchievementsTotal)
	fmt.Fprintf(tw, "  claimable\t%d\n", snap.Claimable)
	fmt.Fprintf(tw, "  claimed\t%d\n", snap.Claimed)
	fmt.Fprintf(tw, "  minted\t%d\n", snap.Minted)
	fmt.Fprintf(tw, "  failed\t%d\n", snap.Failed)
	fmt.Fprintf(tw, "Certificates transferred\t%d\n", snap.Transferred)
	fmt.Fprintf(tw, "Awaiting trustline\t%d\n", snap.AwaitingTrustline)
	fmt.Fprintf(tw, "Pools\t%d (%d active)\n", snap.Pools, snap.ActivePools)
	fmt.Fprintf(tw, "Total deposited\t%s\n", model.FormatAmount(snap.TotalDeposited))
	fmt.Fprintf(tw, "Total donated\t%s\n", model.FormatAmount(snap.TotalDonated))
	tw.Flush() //nolint:errcheck
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(statusCmd)
}
