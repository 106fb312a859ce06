package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

// SubmitUseCase handles the request path: document upload, job creation
// and the hand-off to the queue. It never blocks on OCR.
type SubmitUseCase struct {
	tx      ports.TxRunner
	storage ports.FileStorage
	queue   ports.JobQueue
	now     func() time.Time
}

func NewSubmitUseCase(tx ports.TxRunner, storage ports.FileStorage, queue ports.JobQueue) *SubmitUseCase {
	return &SubmitUseCase{
		tx:      tx,
		storage: storage,
		queue:   queue,
		now:     time.Now,
	}
}

func (uc *SubmitUseCase) UploadDocument(
	ctx context.Context,
	filename, mimeType string,
	sizeBytes int64,
	body io.Reader,
) (*domain.Document, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	doc, err := domain.NewDocument(id, filename, mimeType, storageKey, sizeBytes, uc.now())
	if err != nil {
		return nil, err
	}

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save document bytes: %w", err)
	}

	err = uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		return uow.Documents().Add(ctx, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("persist document metadata: %w", err)
	}
	return doc, nil
}

func (uc *SubmitUseCase) SubmitJob(ctx context.Context, documentID string) (*domain.Job, error) {
	var job *domain.Job

	err := uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		if _, err := uow.Documents().Get(ctx, documentID); err != nil {
			return fmt.Errorf("resolve document: %w", err)
		}
		if err := uc.rejectActiveJob(ctx, uow, documentID); err != nil {
			return err
		}

		created, err := domain.NewJob(uuid.NewString(), documentID, uc.now())
		if err != nil {
			return err
		}
		if err := uow.Jobs().Add(ctx, created); err != nil {
			return fmt.Errorf("persist job: %w", err)
		}
		job = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := uc.queue.PublishJobEnqueued(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return job, nil
}

// RetryJob creates a fresh PENDING job for the document of a FAILED one.
// The failed job itself stays terminal and untouched.
func (uc *SubmitUseCase) RetryJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job *domain.Job

	err := uc.tx.InTx(ctx, func(uow ports.UnitOfWork) error {
		original, err := uow.Jobs().Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("resolve job: %w", err)
		}
		if original.Status != domain.JobFailed {
			return domain.WrapError(domain.ErrInvalidState, "retry job",
				fmt.Errorf("job %s is %s, only failed jobs can be retried", jobID, original.Status))
		}

		created, err := domain.NewJob(uuid.NewString(), original.DocumentID, uc.now())
		if err != nil {
			return err
		}
		if err := uow.Jobs().Add(ctx, created); err != nil {
			return fmt.Errorf("persist retry job: %w", err)
		}
		job = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := uc.queue.PublishJobEnqueued(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue retry job %s: %w", job.ID, err)
	}
	return job, nil
}

func (uc *SubmitUseCase) rejectActiveJob(ctx context.Context, uow ports.UnitOfWork, documentID string) error {
	existing, err := uow.Jobs().ListByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list jobs for document: %w", err)
	}
	for _, j := range existing {
		if j.IsActive() {
			return domain.WrapError(domain.ErrInvalidState, "submit job",
				fmt.Errorf("document %s already has job %s in %s state", documentID, j.ID, j.Status))
		}
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
