package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/store"
)

var (
	exportOut   string
	exportState string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export achievements to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Registry.List(ctx, store.AchievementFilter{
			State: model.AchievementState(exportState),
		})
		if err != nil {
			return eris.Wrap(err, "list achievements")
		}

		if err := writeAchievementWorkbook(exportOut, records); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("rows", len(records)),
		)
		return nil
	},
}

func writeAchievementWorkbook(path string, records []model.ClaimableAchievement) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Achievements")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, col := range []string{
		"ID", "Category", "Subject", "Recipient", "Threshold", "Tier", "State",
		"Asset Code", "Issuer", "Transfer Tx", "Manual Claim", "Created At", "Minted At",
	} {
		header.AddCell().SetString(col)
	}

	for _, a := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(a.ID)
		row.AddCell().SetString(string(a.Category))
		row.AddCell().SetString(a.Subject)
		row.AddCell().SetString(a.Recipient)
		row.AddCell().SetString(model.FormatAmount(a.Threshold))
		row.AddCell().SetString(string(a.Tier))
		row.AddCell().SetString(string(a.State))

		assetCode, issuerAddr, transferTx, manual := "", "", "", ""
		if a.Certificate != nil {
			assetCode = a.Certificate.AssetCode
			issuerAddr = a.Certificate.Issuer
			transferTx = a.Certificate.TransferTxRef
			if a.Certificate.RequiresManualClaim {
				manual = "yes"
			}
		}
		row.AddCell().SetString(assetCode)
		row.AddCell().SetString(issuerAddr)
		row.AddCell().SetString(transferTx)
		row.AddCell().SetString(manual)

		row.AddCell().SetString(a.CreatedAt.Format(time.RFC3339))
		mintedAt := ""
		if a.MintedAt != nil {
			mintedAt = a.MintedAt.Format(time.RFC3339)
		}
		row.AddCell().SetString(mintedAt)
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "save workbook %s", path)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "achievements.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportState, "state", "", "only export achievements in this state")
	rootCmd.AddCommand(exportCmd)
}
