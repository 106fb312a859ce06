package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

// ExecuteConfig bounds a single job execution. PageConcurrency widths
// above one fan pages out in parallel; aggregation re-sorts by page index
// so the observable result is identical at any width.
type ExecuteConfig struct {
	Language        string
	PageTimeout     time.Duration
	PageConcurrency int
}

// ExecuteUseCase runs one OCR job end to end on the worker path. It is
// safe under at-least-once delivery: a job that is no longer PENDING is
// rejected with a domain.ErrInvalidState kind before any page work.
type ExecuteUseCase struct {
	tx     ports.TxRunner
	loader ports.DocumentLoader
	engine ports.OCREngine
	cfg    ExecuteConfig
	now    func() time.Time
}

func NewExecuteUseCase(tx ports.TxRunner, loader ports.DocumentLoader, engine ports.OCREngine, cfg ExecuteConfig) *ExecuteUseCase {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PageConcurrency < 1 {
		cfg.PageConcurrency = 1
	}
	return &ExecuteUseCase{
		tx:     tx,
		loader: loader,
		engine: engine,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (uc *ExecuteUseCase) Execute(ctx context.Context, jobID string) error {
	doc, err := uc.claim(ctx, jobID)
	if err != nil {
		return err
	}

	pages, loadErr := uc.processPages(ctx, doc)
	if loadErr != nil && !domain.IsKind(loadErr, domain.ErrLoadFailed) {
		// context cancellation or infrastructure failure: leave the job
		// in PROCESSING for redelivery/monitoring rather than committing
		// a terminal state we did not earn.
		return loadErr
	}

	return uc.finalize(ctx, jobID, doc, pages, loadErr)
}

// claim transitions the job PENDING -> PROCESSING in its own transaction
// so the state change is visible before any OCR work starts.
func (uc *ExecuteUseCase) claim(ctx context.Context, jobID string) (*domain.Document, error) {
	var doc *domain.Document

	err := uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		job, err := uow.Jobs().Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("resolve job: %w", err)
		}
		if err := job.MarkProcessing(uc.now()); err != nil {
			return err
		}
		if err := uow.Jobs().UpdateStatus(ctx, job, domain.JobPending); err != nil {
			return fmt.Errorf("claim job %s: %w", jobID, err)
		}

		doc, err = uow.Documents().Get(ctx, job.DocumentID)
		if err != nil {
			return fmt.Errorf("resolve document %s: %w", job.DocumentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *ExecuteUseCase) processPages(ctx context.Context, doc *domain.Document) ([]domain.PageResult, error) {
	it, err := uc.loader.Load(ctx, doc)
	if err != nil {
		if domain.IsKind(err, domain.ErrLoadFailed) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrLoadFailed, "open document", err)
	}
	defer it.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.PageConcurrency)

	var mu sync.Mutex
	var pages []domain.PageResult

	for {
		page, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = g.Wait()
			if domain.IsKind(err, domain.ErrLoadFailed) {
				return nil, err
			}
			return nil, domain.WrapError(domain.ErrLoadFailed, "read page", err)
		}

		g.Go(func() error {
			outcome := uc.processPage(gctx, page)
			mu.Lock()
			pages = append(pages, outcome)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// processPage never fails the job: every outcome, including timeouts and
// engine errors, is recorded as a per-page result.
func (uc *ExecuteUseCase) processPage(ctx context.Context, page ports.PageImage) domain.PageResult {
	start := time.Now()
	outcome := domain.PageResult{PageIndex: page.PageIndex}

	switch {
	case page.NativeText != "":
		outcome.Text = page.NativeText
	case len(page.Data) == 0:
		outcome.ErrorMessage = "page has no decodable image"
	default:
		rctx := ctx
		cancel := context.CancelFunc(func() {})
		if uc.cfg.PageTimeout > 0 {
			rctx, cancel = context.WithTimeout(ctx, uc.cfg.PageTimeout)
		}
		text, err := uc.engine.Recognize(rctx, page, uc.cfg.Language)
		cancel()
		if err != nil {
			outcome.ErrorMessage = pageFailureReason(err, uc.cfg.PageTimeout)
		} else {
			outcome.Text = text
		}
	}

	outcome.ElapsedMS = time.Since(start).Milliseconds()
	return outcome
}

// finalize persists the result and the terminal status atomically.
func (uc *ExecuteUseCase) finalize(ctx context.Context, jobID string, doc *domain.Document, pages []domain.PageResult, loadErr error) error {
	return uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		job, err := uow.Jobs().Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("resolve job for finalize: %w", err)
		}
		if job.Status != domain.JobProcessing {
			return domain.WrapError(domain.ErrInvalidState, "finalize job",
				fmt.Errorf("job %s is %s, want %s", jobID, job.Status, domain.JobProcessing))
		}

		now := uc.now()
		result := domain.NewResult(uuid.NewString(), job.ID, pages, now)
		if err := uow.Results().Add(ctx, result); err != nil {
			return fmt.Errorf("persist result: %w", err)
		}

		switch {
		case loadErr != nil:
			err = job.Fail(loadErr.Error(), now)
		case result.SucceededPages > 0:
			err = job.Complete(now)
		case result.IsEmpty():
			err = job.Fail("empty document: no pages to process", now)
		default:
			err = job.Fail("no pages recognized", now)
		}
		if err != nil {
			return err
		}

		if err := uow.Jobs().UpdateStatus(ctx, job, domain.JobProcessing); err != nil {
			return fmt.Errorf("persist terminal status: %w", err)
		}

		if doc.PageCount == 0 && len(pages) > 0 {
			if err := uow.Documents().UpdatePageCount(ctx, doc.ID, len(pages)); err != nil {
				return fmt.Errorf("backfill page count: %w", err)
			}
		}
		return nil
	})
}

func pageFailureReason(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("recognition timed out after %s", timeout)
	}
	return err.Error()
}
