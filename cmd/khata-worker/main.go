package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"khata/internal/config"
	"khata/internal/events"
	"khata/internal/export"
	exportgoogle "khata/internal/export/google"
	exportmem "khata/internal/export/memory"
	"khata/internal/gateway/factory"
	applog "khata/internal/log"
	"khata/internal/store"
	"khata/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting khata-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, cleanup, err := factory.Open(ctx, factory.Config{
		Type:         factory.Type(cfg.DataBackend),
		DataFilePath: cfg.DataFilePath,
		SQLiteDBPath: cfg.SQLiteDBPath,
	}, logger.Logger)
	if err != nil {
		logger.Error("Failed to open gateway", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer cleanup()

	// Export sink: Google Sheets when configured, otherwise in-memory
	// (useful for local runs without credentials).
	var sales export.SalesWriter
	var dues export.DuesWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := exportgoogle.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		sales, dues = client, client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		sink := exportmem.New()
		sales, dues = sink, sink
		logger.Info("Google Sheets disabled - exporting to memory sink")
	}

	exportWorker := worker.NewExportWorker(store.New(gw), sales, dues)

	// Initial export so a fresh worker starts from current state.
	if err := exportWorker.ExportOnce(ctx); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Event-driven exports, when a broker is configured.
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			return client.ConsumeLedgerEvents(ctx, func(e *events.LedgerEvent) error {
				return exportWorker.HandleLedgerEvent(ctx, e)
			})
		})
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - relying on periodic export only")
	}

	// Periodic export as a backup for missed events.
	g.Go(func() error {
		return exportWorker.Run(ctx, cfg.ExportInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
