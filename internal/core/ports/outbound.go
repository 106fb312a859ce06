package ports

import (
	"context"
	"io"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
)

// PageImage is one page of a document, ready for recognition. Data is a
// PNG-encoded raster. NativeText carries a pre-extracted text layer (PDF
// pages that already contain text); when set, recognition is skipped.
type PageImage struct {
	PageIndex  int
	Data       []byte
	NativeText string
}

// PageIterator yields a document's pages lazily, in ascending page order.
// Next returns io.EOF when the sequence is exhausted. Close releases any
// temporary resources and must be called on every path.
type PageIterator interface {
	Next(ctx context.Context) (PageImage, error)
	Close() error
}

// DocumentLoader opens a document as a finite, restartable page sequence.
// Failures to open the document at all carry domain.ErrLoadFailed.
type DocumentLoader interface {
	Load(ctx context.Context, doc *domain.Document) (PageIterator, error)
}

// OCREngine recognizes text on a single page image. Engine failures carry
// domain.ErrRecognition; callers bound the call with a context deadline.
type OCREngine interface {
	Recognize(ctx context.Context, page PageImage, lang string) (string, error)
}

// FileStorage stores and retrieves raw document bytes by storage key.
// Open on an absent key carries domain.ErrNotFound.
type FileStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (int64, error)
}

// JobQueue is the durable hand-off between submission and execution.
// Delivery is at-least-once with no ordering guarantee across jobs;
// consumers must tolerate redelivery.
type JobQueue interface {
	PublishJobEnqueued(ctx context.Context, jobID string) error
	SubscribeJobEnqueued(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentRepository persists document metadata.
type DocumentRepository interface {
	Add(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, id string) (*domain.Document, error)
	UpdatePageCount(ctx context.Context, id string, pageCount int) error
}

// JobRepository persists job state. UpdateStatus writes the job's current
// state guarded by the expected previous status; a concurrent writer
// having moved the job first surfaces as domain.ErrConflict.
type JobRepository interface {
	Add(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	UpdateStatus(ctx context.Context, job *domain.Job, expected domain.JobStatus) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.Job, error)
	ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error)
	ListAll(ctx context.Context) ([]domain.Job, error)
}

// ResultRepository persists aggregated results, one per terminal job.
type ResultRepository interface {
	Add(ctx context.Context, result *domain.Result) error
	GetByJobID(ctx context.Context, jobID string) (*domain.Result, error)
}

// UnitOfWork exposes repositories bound to a single open transaction.
// Repository handles are valid only until the enclosing InTx call returns.
type UnitOfWork interface {
	Documents() DocumentRepository
	Jobs() JobRepository
	Results() ResultRepository
}

// TxRunner scopes a Unit of Work: the callback's repositories share one
// transaction that commits when the callback returns nil and rolls back
// on error or panic. The transaction is released exactly once on every
// exit path.
type TxRunner interface {
	InTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
