// Command weekly-suggestions is the batch entry point for the Weekly
// Suggester (§6.5): weekly-suggestions [--week YYYY-MM-DD] [--user
// USER_ID] [--dry-run] [--concurrency N]. Exit codes: 0 all users
// succeeded or no users, 1 at least one user failed, 2 configuration
// error. Flag handling grounded on
// dvloznov-finance-tracker/cmd/api/main.go's flag.String idiom.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/aggregate"
	"github.com/brightledger/finance-analytics-core/internal/capability"
	"github.com/brightledger/finance-analytics-core/internal/config"
	"github.com/brightledger/finance-analytics-core/internal/logging"
	"github.com/brightledger/finance-analytics-core/internal/store"
	"github.com/brightledger/finance-analytics-core/internal/store/bigquery"
	"github.com/brightledger/finance-analytics-core/internal/store/sqlite"
	"github.com/brightledger/finance-analytics-core/internal/suggester"
)

func main() {
	os.Exit(run())
}

func run() int {
	week := flag.String("week", "", "ISO week to process, YYYY-MM-DD (default: most recently completed week)")
	user := flag.String("user", "", "restrict the run to a single user ID")
	dryRun := flag.Bool("dry-run", false, "run the pipeline without persisting reports")
	concurrency := flag.Int("concurrency", 0, "parallel users to process (default from CONCURRENCY_USERS)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	log := logging.New(cfg.LogLevel)

	weekStart := aggregate.ISOWeekStartUTC(time.Now().UTC()).AddDate(0, 0, -7)
	if *week != "" {
		t, err := time.Parse("2006-01-02", *week)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --week %q: %v\n", *week, err)
			return 2
		}
		weekStart = aggregate.ISOWeekStartUTC(t.UTC())
	}

	ctx := context.Background()
	purchases, reports, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to open store")
		return 2
	}
	defer closeStores()

	if cfg.AnthropicAPIKey != "" {
		os.Setenv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	}
	search := capability.NewWebSearch()

	engine := suggester.New(purchases, reports, search, suggester.Config{
		TopN:          cfg.WeeklyTopN,
		MinSavingsUSD: cfg.WeeklyMinSavingsUSD,
		SearchModel:   cfg.SearchModel,
		MaxFindings:   cfg.SearchMaxFindings,
	})

	concurrencyUsers := *concurrency
	if concurrencyUsers <= 0 {
		concurrencyUsers = cfg.ConcurrencyUsers
	}

	jobLog, err := engine.RunBatch(ctx, suggester.BatchOptions{
		WeekStart:   weekStart,
		UserID:      *user,
		Concurrency: concurrencyUsers,
		DryRun:      *dryRun,
	})
	if err != nil {
		log.Error().Err(err).Msg("batch run failed")
		return 2
	}

	if err := json.NewEncoder(os.Stdout).Encode(jobLog); err != nil {
		log.Error().Err(err).Msg("failed to write job log")
		return 2
	}

	if jobLog.Failed > 0 {
		return 1
	}
	return 0
}

func openStores(ctx context.Context, cfg config.Config) (store.PurchaseStore, store.ReportStore, func(), error) {
	if cfg.StoreBackend == config.BackendBigQuery {
		s, err := bigquery.Open(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { _ = s.Close() }, nil
	}
	s, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, nil, err
	}
	return s, s, func() { _ = s.Close() }, nil
}
