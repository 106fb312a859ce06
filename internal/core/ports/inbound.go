package ports

import (
	"context"
	"io"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
)

// JobSubmitter is the inbound contract for the request path: upload
// documents, create jobs, hand them to the queue.
type JobSubmitter interface {
	UploadDocument(ctx context.Context, filename, mimeType string, sizeBytes int64, body io.Reader) (*domain.Document, error)
	SubmitJob(ctx context.Context, documentID string) (*domain.Job, error)
	RetryJob(ctx context.Context, jobID string) (*domain.Job, error)
}

// JobExecutor is the inbound contract for the worker path. Execute is
// safe to invoke more than once for the same job id.
type JobExecutor interface {
	Execute(ctx context.Context, jobID string) error
}

// JobFilter narrows ListJobs. Zero value matches everything.
type JobFilter struct {
	Status     domain.JobStatus
	DocumentID string
}

// JobReader is the read-only query surface.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	GetResult(ctx context.Context, jobID string) (*domain.Result, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error)
	OpenDocument(ctx context.Context, documentID string) (io.ReadCloser, *domain.Document, error)
}
