// Package ingest pulls contribution report spreadsheets from FTP drop
// locations and feeds their totals into milestone detection.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/impactpool/milestone-cli/internal/milestone"
	"github.com/impactpool/milestone-cli/internal/model"
)

// Reporter is the milestone entry point the ingestor feeds.
type Reporter interface {
	OnNewTotal(ctx context.Context, rep milestone.TotalReport) ([]model.ClaimableAchievement, error)
}

// Summary tallies one ingest run.
type Summary struct {
	Reports         int
	Rows            int
	SkippedReports  int
	NewAchievements []model.ClaimableAchievement
}

// Ingestor downloads and processes contribution reports with bounded
// concurrency. Reports are independent; a failed download or parse skips
// that report and the run continues.
type Ingestor struct {
	downloader *FTPDownloader
	reporter   Reporter
	workers    int
}

func NewIngestor(downloader *FTPDownloader, reporter Reporter, workers int) *Ingestor {
	if workers <= 0 {
		workers = 4
	}
	return &Ingestor{downloader: downloader, reporter: reporter, workers: workers}
}

// Run ingests every report URL. Downloads run concurrently; each report's
// rows are then reported sequentially so per-subject ordering within a
// report is preserved.
func (in *Ingestor) Run(ctx context.Context, urls []string) (*Summary, error) {
	tmpDir, err := os.MkdirTemp("", "contribution-reports-")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	var mu sync.Mutex
	summary := &Summary{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	for _, rawURL := range urls {
		g.Go(func() error {
			local := filepath.Join(tmpDir, uuid.New().String()+".xlsx")
			if _, err := in.downloader.DownloadToFile(gctx, rawURL, local); err != nil {
				zap.L().Warn("report download failed, skipping",
					zap.String("url", rawURL),
					zap.Error(err))
				mu.Lock()
				summary.SkippedReports++
				mu.Unlock()
				return nil
			}

			rows, err := ReadReport(local)
			if err != nil {
				zap.L().Warn("report parse failed, skipping",
					zap.String("url", rawURL),
					zap.Error(err))
				mu.Lock()
				summary.SkippedReports++
				mu.Unlock()
				return nil
			}

			created, err := in.processRows(gctx, rows)
			if err != nil {
				return err
			}

			mu.Lock()
			summary.Reports++
			summary.Rows += len(rows)
			summary.NewAchievements = append(summary.NewAchievements, created...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, eris.Wrap(err, "ingest: run")
	}

	zap.L().Info("ingest complete",
		zap.Int("reports", summary.Reports),
		zap.Int("rows", summary.Rows),
		zap.Int("skipped", summary.SkippedReports),
		zap.Int("new_achievements", len(summary.NewAchievements)))
	return summary, nil
}

func (in *Ingestor) processRows(ctx context.Context, rows []ContributionRow) ([]model.ClaimableAchievement, error) {
	var created []model.ClaimableAchievement
	for _, row := range rows {
		got, err := in.reporter.OnNewTotal(ctx, milestone.TotalReport{
			Subject:   row.Subject,
			Category:  row.Category,
			NewTotal:  row.NewTotal,
			Recipient: row.Recipient,
			Metadata: model.AchievementMetadata{
				PoolName:    row.PoolName,
				CharityName: row.CharityName,
			},
		})
		if err != nil {
			return created, eris.Wrapf(err, "ingest: report total for %s", row.Subject)
		}
		created = append(created, got...)
	}
	return created, nil
}
