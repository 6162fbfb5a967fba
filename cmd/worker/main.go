package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/rag-evalkit/internal/bootstrap"
	"github.com/kirillkom/rag-evalkit/internal/config"
	"github.com/kirillkom/rag-evalkit/internal/observability/logging"
	"github.com/kirillkom/rag-evalkit/internal/observability/metrics"
)

// runTimeout bounds one evaluation run end to end, including generation
// and judging over the whole example set.
const runTimeout = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	app, err := bootstrap.New(ctx, cfg, workerMetrics.ExperimentSink())
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Index.Ensure(ctx); err != nil {
		slog.Error("vector index not ready", "error", err)
		os.Exit(1)
	}
	slog.Info("vector index ready", "documents", app.Corpus.Len(), "examples", len(app.Examples))

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeRunQueued(ctx, func(handlerCtx context.Context, runID string) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, runTimeout)
		defer cancel()

		if run, lookupErr := app.RunUC.GetByID(runCtx, runID); lookupErr == nil {
			workerMetrics.ObserveQueueLag("worker", time.Since(run.CreatedAt))
		}

		workerMetrics.StartRun()
		start := time.Now()
		execErr := app.RunUC.ExecuteByID(runCtx, runID)
		workerMetrics.FinishRun("worker", time.Since(start), execErr)
		return execErr
	})
	if err != nil {
		slog.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
