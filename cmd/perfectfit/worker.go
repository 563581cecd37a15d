package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/logger"
	"github.com/jonathan/perfect-fit/internal/observability"
	"github.com/jonathan/perfect-fit/internal/queue"
	"github.com/jonathan/perfect-fit/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	workerPrefetch int
	workerVerbose  bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume scoring batches from RabbitMQ",
	Long:  "Consume technical assessment batches published by the API server, score every answer and persist the results.",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerPrefetch, "prefetch", 2, "Maximum unacknowledged batches held by this worker")
	workerCmd.Flags().BoolVarP(&workerVerbose, "verbose", "v", false, "Print a summary of every scored submission")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	if cfg.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL, logger.Named(log, logger.DB))
	if err != nil {
		return err
	}
	defer database.Close()

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	workerLog := logger.Named(log, logger.Worker)
	mq, err := queue.Dial(cfg.RabbitMQURL, cfg.ScoringQueue, workerLog)
	if err != nil {
		return err
	}
	defer func() { _ = mq.Close() }()

	orchestrator := newOrchestrator(cfg, client, database, log)
	workerLog.Info("scoring worker started",
		zap.String("provider", cfg.LLMProvider),
		zap.String("queue", cfg.ScoringQueue),
		zap.Int("concurrency", cfg.ScoringConcurrency))

	var handler queue.Handler = orchestrator
	if workerVerbose {
		handler = &printingHandler{next: orchestrator, printer: observability.NewPrinter(os.Stdout)}
	}

	err = mq.Consume(ctx, handler, workerPrefetch)
	processed, failed := orchestrator.Stats()
	workerLog.Info("scoring worker stopped", zap.Int64("processed", processed), zap.Int64("failed", failed))
	return err
}

// printingHandler prints each batch outcome after delegating to next.
type printingHandler struct {
	next    queue.Handler
	printer *observability.Printer
}

func (h *printingHandler) Process(ctx context.Context, batch *types.ScoringBatch) ([]types.ScoredAnswer, error) {
	results, err := h.next.Process(ctx, batch)
	if err == nil {
		h.printer.PrintScoredBatch(batch, results)
	}
	return results, err
}
