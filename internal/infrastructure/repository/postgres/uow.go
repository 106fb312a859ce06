package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

// TxRunner scopes repository work to a single database transaction.
// The transaction commits when the callback returns nil, rolls back on
// error or panic, and is released exactly once on every path.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) InTx(ctx context.Context, fn func(uow ports.UnitOfWork) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		// rollback path: callback error or panic
		_ = tx.Rollback()
	}()

	if err := fn(&unitOfWork{tx: tx}); err != nil {
		return mapTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapTxError(fmt.Errorf("commit tx: %w", err))
	}
	done = true
	return nil
}

type unitOfWork struct {
	tx *sql.Tx
}

func (u *unitOfWork) Documents() ports.DocumentRepository {
	return NewDocumentRepository(u.tx)
}

func (u *unitOfWork) Jobs() ports.JobRepository {
	return NewJobRepository(u.tx)
}

func (u *unitOfWork) Results() ports.ResultRepository {
	return NewResultRepository(u.tx)
}

// mapTxError surfaces serialization and lock conflicts as the retryable
// conflict kind; everything else passes through unmodified.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock not available
			return domain.WrapError(domain.ErrConflict, "transaction", err)
		case "23505": // duplicate key: concurrent writer got there first
			return domain.WrapError(domain.ErrConflict, "transaction", err)
		}
	}
	return err
}
