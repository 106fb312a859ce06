package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
)

type JobRepository struct {
	db dbtx
}

func NewJobRepository(db dbtx) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, document_id, status, error_message, created_at, started_at, completed_at`

func (r *JobRepository) Add(ctx context.Context, job *domain.Job) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO jobs (id, document_id, status, error_message, created_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		job.ID, job.DocumentID, string(job.Status), job.ErrorMessage, job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("job %s", id))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}

// UpdateStatus persists the job's state guarded by the status the caller
// observed. Zero rows affected means a concurrent writer moved the job
// first; that surfaces as the retryable conflict kind.
func (r *JobRepository) UpdateStatus(ctx context.Context, job *domain.Job, expected domain.JobStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status = $3, error_message = $4, started_at = $5, completed_at = $6
WHERE id = $1 AND status = $2
`,
		job.ID, string(expected), string(job.Status), job.ErrorMessage, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job status rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConflict, "update job status",
			fmt.Errorf("job %s no longer in %s", job.ID, expected))
	}
	return nil
}

func (r *JobRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE document_id = $1
ORDER BY created_at DESC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by document: %w", err)
	}
	return collectJobs(rows)
}

func (r *JobRepository) ListByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE status = $1
ORDER BY created_at DESC
`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	return collectJobs(rows)
}

func (r *JobRepository) ListAll(ctx context.Context) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	err := row.Scan(&job.ID, &job.DocumentID, &status, &job.ErrorMessage, &job.CreatedAt, &job.StartedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}
