package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
)

type ResultRepository struct {
	db dbtx
}

func NewResultRepository(db dbtx) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Add(ctx context.Context, result *domain.Result) error {
	pages := result.Pages
	if pages == nil {
		pages = []domain.PageResult{}
	}
	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("marshal page results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO results (id, job_id, content, succeeded_pages, failed_pages, pages, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		result.ID, result.JobID, result.Text, result.SucceededPages, result.FailedPages, pagesJSON, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *ResultRepository) GetByJobID(ctx context.Context, jobID string) (*domain.Result, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, job_id, content, succeeded_pages, failed_pages, pages, created_at
FROM results
WHERE job_id = $1
`, jobID)

	var result domain.Result
	var pagesRaw []byte
	err := row.Scan(&result.ID, &result.JobID, &result.Text, &result.SucceededPages, &result.FailedPages, &pagesRaw, &result.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get result", fmt.Errorf("result for job %s", jobID))
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal(pagesRaw, &result.Pages); err != nil {
		return nil, fmt.Errorf("unmarshal page results: %w", err)
	}
	return &result, nil
}
