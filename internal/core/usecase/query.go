package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

// QueryUseCase is the read-only projection over jobs, results and
// documents. It never mutates state.
type QueryUseCase struct {
	tx      ports.TxRunner
	storage ports.FileStorage
}

func NewQueryUseCase(tx ports.TxRunner, storage ports.FileStorage) *QueryUseCase {
	return &QueryUseCase{tx: tx, storage: storage}
}

func (uc *QueryUseCase) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job *domain.Job
	err := uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		j, err := uow.Jobs().Get(ctx, jobID)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetResult returns the committed result of a terminal job. Every
// terminal job owns one, including jobs that failed before any page was
// attempted (their result is empty). Non-terminal jobs yield ErrNotReady.
func (uc *QueryUseCase) GetResult(ctx context.Context, jobID string) (*domain.Result, error) {
	var result *domain.Result
	err := uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		job, err := uow.Jobs().Get(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsTerminal() {
			return domain.WrapError(domain.ErrNotReady, "get result",
				fmt.Errorf("job %s is still %s", jobID, job.Status))
		}
		r, err := uow.Results().GetByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *QueryUseCase) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	var doc *domain.Document
	err := uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		d, err := uow.Documents().Get(ctx, documentID)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *QueryUseCase) ListJobs(ctx context.Context, filter ports.JobFilter) ([]domain.Job, error) {
	var jobs []domain.Job
	err := uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		var err error
		switch {
		case filter.DocumentID != "":
			jobs, err = uow.Jobs().ListByDocument(ctx, filter.DocumentID)
		case filter.Status != "":
			jobs, err = uow.Jobs().ListByStatus(ctx, filter.Status)
		default:
			jobs, err = uow.Jobs().ListAll(ctx)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if filter.DocumentID != "" && filter.Status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Status == filter.Status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	return jobs, nil
}

// OpenDocument streams the stored bytes for download. The caller owns the
// returned reader.
func (uc *QueryUseCase) OpenDocument(ctx context.Context, documentID string) (io.ReadCloser, *domain.Document, error) {
	doc, err := uc.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := uc.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open stored bytes for %s: %w", documentID, err)
	}
	return rc, doc, nil
}
