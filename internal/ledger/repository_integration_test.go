package ledger

import (
	"context"
	"testing"
	"time"

	"jobflow_backend/internal/testinfra"

	"github.com/google/uuid"
)

func TestRepositoryInsertOncePerPartsRequest(t *testing.T) {
	pool := testinfra.Postgres(t)
	ctx := context.Background()
	f := testinfra.SeedJob(t, pool, "in_progress", 20000, false)

	partsID := uuid.New()
	if _, err := pool.Exec(ctx,
		`INSERT INTO parts_requests (id, service_request_id, requested_by_pro_id, description, status, actual_cost_cents)
		 VALUES ($1, $2, $3, 'compressor', 'installed', 12000)`,
		partsID, f.JobID, f.ProID,
	); err != nil {
		t.Fatalf("seed parts request: %v", err)
	}

	repo := NewRepository(pool)
	expense := Expense{
		ID:             uuid.New(),
		JobID:          f.JobID,
		PartsRequestID: partsID,
		Description:    "Parts: compressor",
		AmountCents:    12000,
		Notes:          notesProSourced,
		CreatedAt:      time.Now(),
	}
	inserted, err := repo.Insert(ctx, expense)
	if err != nil || !inserted {
		t.Fatalf("expected first insert, got %v %v", inserted, err)
	}

	expense.ID = uuid.New()
	inserted, err = repo.Insert(ctx, expense)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate booking to be skipped")
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM job_expenses WHERE parts_request_id = $1`, partsID).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one expense, got %d", count)
	}
}
