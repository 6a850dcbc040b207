// Command server runs the HTTP/SSE Facade (C8): REST endpoints for
// transactions, predictions, tips, deals, and weekly alternatives, plus a
// streaming endpoint for the Weekly Suggester's live view. Wiring and
// graceful-shutdown idiom grounded on
// dvloznov-finance-tracker/cmd/api/main.go.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/capability"
	"github.com/brightledger/finance-analytics-core/internal/config"
	"github.com/brightledger/finance-analytics-core/internal/deals"
	"github.com/brightledger/finance-analytics-core/internal/httpapi"
	"github.com/brightledger/finance-analytics-core/internal/logging"
	"github.com/brightledger/finance-analytics-core/internal/predict"
	"github.com/brightledger/finance-analytics-core/internal/store"
	"github.com/brightledger/finance-analytics-core/internal/store/bigquery"
	"github.com/brightledger/finance-analytics-core/internal/store/sqlite"
	"github.com/brightledger/finance-analytics-core/internal/suggester"
	"github.com/brightledger/finance-analytics-core/internal/tips"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(2)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purchases, reports, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStores()

	if cfg.AnthropicAPIKey != "" {
		os.Setenv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	}
	search := capability.NewWebSearch()
	catalog := deals.Default(cfg.DealsAllowedCategories)

	handlers := &httpapi.Handlers{
		Purchases:     purchases,
		Reports:       reports,
		PredictEngine: predict.New(purchases),
		Tips:          tips.New(purchases, catalog),
		Deals:         deals.New(purchases, catalog),
		Suggester: suggester.New(purchases, reports, search, suggester.Config{
			TopN:          cfg.WeeklyTopN,
			MinSavingsUSD: cfg.WeeklyMinSavingsUSD,
			SearchModel:   cfg.SearchModel,
			MaxFindings:   cfg.SearchMaxFindings,
		}),
	}

	router := httpapi.NewRouter(handlers, log, cfg.CORSAllowOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second, // above the 60s streaming deadline (§5)
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting analytics facade")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
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
