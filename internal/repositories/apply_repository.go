package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"

	"tabledesk/internal/reconciler"
)

// ApplyRejectedError reports the operation the server refused. Operations
// before Index were applied and stay applied. An operation rendering to
// several statements may itself be partly applied: its first
// StatementsApplied statements went through.
type ApplyRejectedError struct {
	Index             int
	Operation         reconciler.Operation
	Statement         string
	StatementsApplied int
	Message           string
	Err               error
}

// Partial reports whether the rejected operation left some of its
// statements applied.
func (e *ApplyRejectedError) Partial() bool {
	return e.StatementsApplied > 0
}

func (e *ApplyRejectedError) Error() string {
	return fmt.Sprintf("operation %d (%s) rejected: %s", e.Index, e.Operation.Kind, e.Message)
}

func (e *ApplyRejectedError) Unwrap() error {
	return e.Err
}

// ApplyRepository runs operation lists one statement at a time, outside of
// any transaction, and stops at the first failure.
type ApplyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewApplyRepository(db *sql.DB, logger *slog.Logger) *ApplyRepository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ApplyRepository{db: db, logger: logger}
}

// Apply returns the number of operations fully applied. A partly applied
// operation is not counted; see ApplyRejectedError.StatementsApplied.
func (r *ApplyRepository) Apply(ctx context.Context, ops []reconciler.Operation) (int, error) {
	for i, op := range ops {
		for j, stmt := range op.Statements() {
			r.logger.Debug("executing statement", "index", i, "kind", op.Kind, "sql", stmt)
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				r.logger.Warn("statement rejected", "index", i, "kind", op.Kind, "error", err)
				return i, &ApplyRejectedError{
					Index:             i,
					Operation:         op,
					Statement:         stmt,
					StatementsApplied: j,
					Message:           rejectionMessage(err),
					Err:               err,
				}
			}
		}
	}
	return len(ops), nil
}

func rejectionMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return pgErr.Message + ": " + pgErr.Detail
		}
		return pgErr.Message
	}
	return err.Error()
}
