package bootstrap

import (
	"context"
	"fmt"

	"github.com/artpods56/KUL-OCR/internal/config"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
	"github.com/artpods56/KUL-OCR/internal/core/usecase"
	"github.com/artpods56/KUL-OCR/internal/infrastructure/loader"
	"github.com/artpods56/KUL-OCR/internal/infrastructure/ocr/tesseract"
	natsqueue "github.com/artpods56/KUL-OCR/internal/infrastructure/queue/nats"
	"github.com/artpods56/KUL-OCR/internal/infrastructure/repository/postgres"
	"github.com/artpods56/KUL-OCR/internal/infrastructure/resilience"
	"github.com/artpods56/KUL-OCR/internal/infrastructure/storage/localfs"
)

// App is the single composition point: every boundary receives its
// dependencies from here, explicitly.
type App struct {
	Config config.Config

	Queue   ports.JobQueue
	Submit  ports.JobSubmitter
	Execute ports.JobExecutor
	Query   ports.JobReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	tx := postgres.NewTxRunner(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init file storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	pageLoader := loader.New(storage)
	engine := tesseract.New()

	submitUC := usecase.NewSubmitUseCase(tx, storage, queue)
	executeUC := usecase.NewExecuteUseCase(tx, pageLoader, engine, usecase.ExecuteConfig{
		Language:        cfg.OCRLanguage,
		PageTimeout:     cfg.OCRPageTimeout,
		PageConcurrency: cfg.OCRPageConcurrency,
	})
	queryUC := usecase.NewQueryUseCase(tx, storage)

	return &App{
		Config: cfg,

		Queue:   queue,
		Submit:  submitUC,
		Execute: executeUC,
		Query:   queryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
