package ledger

import (
	"context"
	"fmt"

	"jobflow_backend/platform/db"
)

// Repository stores expenses in job_expenses.
type Repository struct {
	pool db.DBTX
}

// NewRepository creates a new ledger repository.
func NewRepository(pool db.DBTX) *Repository {
	return &Repository{pool: pool}
}

// Insert adds an expense unless the parts request already has one.
func (r *Repository) Insert(ctx context.Context, e Expense) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO job_expenses (id, service_request_id, parts_request_id, description, amount_cents, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (parts_request_id) DO NOTHING
	`, e.ID, e.JobID, e.PartsRequestID, e.Description, e.AmountCents, e.Notes, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert job expense: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ Store = (*Repository)(nil)
