package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpods56/KUL-OCR/internal/bootstrap"
	"github.com/artpods56/KUL-OCR/internal/config"
	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/observability/logging"
	"github.com/artpods56/KUL-OCR/internal/observability/metrics"
)

const serviceName = "kul-ocr-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		logger.Info("metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeJobEnqueued(ctx, func(handlerCtx context.Context, jobID string) error {
		execCtx, cancel := context.WithTimeout(handlerCtx, cfg.ExecuteTimeout)
		defer cancel()

		observeQueueLag(execCtx, app, workerMetrics, jobID)

		workerMetrics.StartJob()
		start := time.Now()
		execErr := app.Execute.Execute(execCtx, jobID)

		duplicate := false
		if execErr != nil && domain.IsKind(execErr, domain.ErrInvalidState) {
			// redelivery of a job already claimed or finished: a no-op,
			// not a failure to report back to the queue
			logger.Info("duplicate delivery ignored", "job_id", jobID, "reason", execErr.Error())
			execErr = nil
			duplicate = true
		}
		workerMetrics.FinishJob(serviceName, time.Since(start), execErr)
		if execErr == nil && !duplicate {
			observePages(execCtx, app, workerMetrics, jobID)
		}

		if execErr != nil {
			logger.Error("job execution failed", "job_id", jobID, "error", execErr)
		}
		return execErr
	})
	if err != nil {
		logger.Error("worker subscribe error", "error", err)
		os.Exit(1)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}

func observeQueueLag(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, jobID string) {
	job, err := app.Query.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	m.ObserveQueueLag(serviceName, time.Since(job.CreatedAt))
}

func observePages(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, jobID string) {
	result, err := app.Query.GetResult(ctx, jobID)
	if err != nil {
		return
	}
	m.ObservePages(serviceName, result.SucceededPages, result.FailedPages)
}
