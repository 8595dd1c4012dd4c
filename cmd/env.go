package main

import (
	"context"
	"os"
	"time"

	"github.com/jomei/notionapi"
	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/artifact"
	"github.com/impactpool/milestone-cli/internal/crm"
	"github.com/impactpool/milestone-cli/internal/ingest"
	"github.com/impactpool/milestone-cli/internal/issuer"
	"github.com/impactpool/milestone-cli/internal/ladder"
	"github.com/impactpool/milestone-cli/internal/milestone"
	"github.com/impactpool/milestone-cli/internal/monitoring"
	"github.com/impactpool/milestone-cli/internal/pool"
	"github.com/impactpool/milestone-cli/internal/registry"
	"github.com/impactpool/milestone-cli/internal/store"
	anthropicpkg "github.com/impactpool/milestone-cli/pkg/anthropic"
	"github.com/impactpool/milestone-cli/pkg/ledger"
	sfpkg "github.com/impactpool/milestone-cli/pkg/salesforce"
)

// env holds all initialized clients and services needed by the commands.
type env struct {
	Store        store.Store
	Registry     *registry.Registry
	Orchestrator *milestone.Orchestrator
	Pools        *pool.Service
	Ingestor     *ingest.Ingestor
	Collector    *monitoring.Collector
	CRM          *crm.Syncer // may be nil
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "milestones.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initLadders resolves ladder definitions: Notion database when configured,
// then a local YAML file, then the built-in defaults.
func initLadders(ctx context.Context) (ladder.Config, error) {
	if cfg.Notion.Token != "" && cfg.Notion.MilestoneDB != "" {
		client := notionapi.NewClient(notionapi.Token(cfg.Notion.Token))
		ladders, err := ladder.LoadNotion(ctx, client.Database, cfg.Notion.MilestoneDB)
		if err != nil {
			return ladder.Config{}, eris.Wrap(err, "load ladders from notion")
		}
		zap.L().Info("ladders loaded from notion")
		return ladders, nil
	}

	if cfg.Ladders.File != "" {
		ladders, err := ladder.LoadFile(cfg.Ladders.File)
		if err != nil {
			return ladder.Config{}, eris.Wrapf(err, "load ladders from %s", cfg.Ladders.File)
		}
		zap.L().Info("ladders loaded from file", zap.String("path", cfg.Ladders.File))
		return ladders, nil
	}

	return ladder.Default(), nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RateLimitRPS)), nil
}

// initEnv sets up the store, ladder config, ledger client, and all services.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ladders, err := initLadders(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey,
		ledger.WithRateLimit(cfg.Ledger.RateLimitRPS))

	var producer artifact.Producer = artifact.NewSVG()
	if cfg.Anthropic.Key != "" {
		producer = artifact.NewClaude(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, producer)
		zap.L().Info("claude dedications enabled", zap.String("model", cfg.Anthropic.Model))
	}

	pipeline := issuer.NewPipeline(ledgerClient, producer)
	reg := registry.New(st, pipeline)
	orch := milestone.NewOrchestrator(ladders, reg)

	downloader := ingest.NewFTPDownloader(ingest.FTPOptions{
		User:     cfg.Ingest.FTPUser,
		Password: cfg.Ingest.FTPPassword,
		Timeout:  time.Duration(cfg.Ingest.TimeoutSecs) * time.Second,
	})

	e := &env{
		Store:        st,
		Registry:     reg,
		Orchestrator: orch,
		Pools:        pool.NewService(st, orch),
		Ingestor:     ingest.NewIngestor(downloader, orch, cfg.Ingest.Workers),
		Collector:    monitoring.NewCollector(st),
	}

	sfClient, err := initSalesforce()
	if err != nil {
		zap.L().Warn("salesforce init failed, crm sync disabled", zap.Error(err))
	} else if sfClient != nil {
		e.CRM = crm.NewSyncer(sfClient)
		zap.L().Info("crm sync enabled")
	}

	return e, nil
}
