package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(db dbtx) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Add(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, filename, mime_type, storage_key, size_bytes, page_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StorageKey, doc.SizeBytes, doc.PageCount, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_key, size_bytes, page_count, created_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	err := row.Scan(&doc.ID, &doc.Filename, &doc.MimeType, &doc.StorageKey, &doc.SizeBytes, &doc.PageCount, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdatePageCount(ctx context.Context, id string, pageCount int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET page_count = $2
WHERE id = $1
`, id, pageCount)
	if err != nil {
		return fmt.Errorf("update page count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update page count rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update page count", fmt.Errorf("document %s", id))
	}
	return nil
}
