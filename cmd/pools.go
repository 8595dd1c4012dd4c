package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/pool"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "Manage impact pools",
	Long:  "Commands for creating pools, recording deposits and withdrawals, and processing yield.",
}

// -- pools create --

var (
	poolName    string
	poolCharity string
	poolPct     int
	poolCreator string
	poolAsset   string
)

var poolsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new impact pool",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Pools.CreatePool(ctx, pool.CreatePoolRequest{
			Name:        poolName,
			Charity:     poolCharity,
			DonationPct: poolPct,
			Creator:     poolCreator,
			Asset:       poolAsset,
		})
		if err != nil {
			return eris.Wrap(err, "create pool")
		}

		zap.L().Info("pool created", zap.String("id", p.ID), zap.String("name", p.Name))
		return printJSON(p)
	},
}

// -- pools list --

var poolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pools",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pools, err := env.Pools.ListPools(ctx)
		if err != nil {
			return eris.Wrap(err, "list pools")
		}

		if len(pools) == 0 {
			fmt.Fprintln(os.Stderr, "No pools found.")
			return nil
		}

		formatPools(os.Stdout, pools)
		return nil
	},
}

// -- pools show --

var poolsShowCmd = &cobra.Command{
	Use:   "show <pool-id>",
	Short: "Show full details of a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Pools.GetPool(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get pool")
		}

		return printJSON(p)
	},
}

// -- pools deposit / withdraw --

var (
	txContributor string
	txAmount      float64
)

var poolsDepositCmd = &cobra.Command{
	Use:   "deposit <pool-id>",
	Short: "Record a contributor deposit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pos, err := env.Pools.Deposit(ctx, args[0], txContributor, txAmount)
		if err != nil {
			return eris.Wrap(err, "deposit")
		}

		return printJSON(pos)
	},
}

var poolsWithdrawCmd = &cobra.Command{
	Use:   "withdraw <pool-id>",
	Short: "Record a contributor withdrawal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pos, err := env.Pools.Withdraw(ctx, args[0], txContributor, txAmount)
		if err != nil {
			return eris.Wrap(err, "withdraw")
		}

		return printJSON(pos)
	},
}

// -- pools yield --

var yieldAmount float64

var poolsYieldCmd = &cobra.Command{
	Use:   "yield <pool-id>",
	Short: "Process harvested yield and evaluate milestones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pools.ProcessYield(ctx, args[0], yieldAmount)
		if err != nil {
			return eris.Wrap(err, "process yield")
		}

		zap.L().Info("yield processed",
			zap.String("pool", args[0]),
			zap.Float64("donation", result.Donation),
			zap.Float64("retained", result.Retained),
			zap.Int("new_achievements", len(result.NewAchievements)),
		)
		return printJSON(result)
	},
}

func formatPools(w io.Writer, pools []model.Pool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHARITY\tPCT\tDEPOSITED\tDONATED\tACTIVE")
	for _, p := range pools {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\t%t\n",
			p.ID,
			p.Name,
			p.Charity,
			p.DonationPct,
			model.FormatAmount(p.TotalDeposited),
			model.FormatAmount(p.TotalDonated),
			p.Active,
		)
	}
	tw.Flush() //nolint:errcheck
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	poolsCreateCmd.Flags().StringVar(&poolName, "name", "", "pool name (required)")
	poolsCreateCmd.Flags().StringVar(&poolCharity, "charity", "", "charity address (required)")
	poolsCreateCmd.Flags().IntVar(&poolPct, "pct", 10, "donation percentage of yield")
	poolsCreateCmd.Flags().StringVar(&poolCreator, "creator", "", "creator address")
	poolsCreateCmd.Flags().StringVar(&poolAsset, "asset", "XLM", "pool asset code")
	poolsCreateCmd.MarkFlagRequired("name")    //nolint:errcheck
	poolsCreateCmd.MarkFlagRequired("charity") //nolint:errcheck

	for _, c := range []*cobra.Command{poolsDepositCmd, poolsWithdrawCmd} {
		c.Flags().StringVar(&txContributor, "contributor", "", "contributor address (required)")
		c.Flags().Float64Var(&txAmount, "amount", 0, "amount (required)")
		c.MarkFlagRequired("contributor") //nolint:errcheck
		c.MarkFlagRequired("amount")      //nolint:errcheck
	}

	poolsYieldCmd.Flags().Float64Var(&yieldAmount, "amount", 0, "yield amount to split (required)")
	poolsYieldCmd.MarkFlagRequired("amount") //nolint:errcheck

	poolsCmd.AddCommand(poolsCreateCmd, poolsListCmd, poolsShowCmd, poolsDepositCmd, poolsWithdrawCmd, poolsYieldCmd)
	rootCmd.AddCommand(poolsCmd)
}
