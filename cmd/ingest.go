package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestURLs []string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download contribution reports over FTP and evaluate milestones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		urls := ingestURLs
		if len(urls) == 0 {
			urls = cfg.Ingest.ReportURLs
		}
		if len(urls) == 0 {
			return eris.New("no report URLs configured; set --url or ingest.report_urls")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Ingestor.Run(ctx, urls)
		if err != nil {
			return eris.Wrap(err, "ingest reports")
		}

		zap.L().Info("ingest complete",
			zap.Int("reports", summary.Reports),
			zap.Int("rows", summary.Rows),
			zap.Int("skipped", summary.SkippedReports),
			zap.Int("new_achievements", len(summary.NewAchievements)),
		)
		return printJSON(summary)
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestURLs, "url", nil, "report URL to ingest (repeatable, overrides config)")
	rootCmd.AddCommand(ingestCmd)
}
