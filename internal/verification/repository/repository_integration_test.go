package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	jobsdomain "jobflow_backend/internal/jobs/domain"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/testinfra"
	"jobflow_backend/platform/apperr"
)

// pendingRecord inserts an out-of-threshold verification for the job.
func pendingRecord(t *testing.T, repo *Repo, f testinfra.Fixture, verified int64) Record {
	t.Helper()
	rec, err := repo.Create(context.Background(), CreateParams{
		JobID: f.JobID, ProID: f.ProID, Method: "photo",
		DetectedParams: json.RawMessage(`{"volume":"full"}`), Confidence: 0.9,
		VerifiedPriceCents: verified, OriginalPriceCents: 20000, PriceDifferenceCents: verified - 20000,
		PercentageDifference: float64(verified-20000) / 200, Reason: "Outside threshold",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func TestApprovalCycleAgainstPostgres(t *testing.T) {
	pool := testinfra.Postgres(t)
	repo := New(pool)
	jobs := jobsrepo.New(pool)
	ctx := context.Background()

	t.Run("auto approved record sets verified price", func(t *testing.T) {
		f := testinfra.SeedJob(t, pool, "in_progress", 20000, false)
		rec, err := repo.Create(ctx, CreateParams{
			JobID: f.JobID, ProID: f.ProID, Method: "photo",
			DetectedParams: json.RawMessage(`{"volume":"quarter"}`), Confidence: 0.9,
			VerifiedPriceCents: 22000, OriginalPriceCents: 20000, PriceDifferenceCents: 2000,
			PercentageDifference: 10, AutoApproved: true, Reason: "Within threshold",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		latest, err := repo.GetLatestForJob(ctx, f.JobID)
		if err != nil || latest.ID != rec.ID {
			t.Fatalf("expected latest record %s, got %+v %v", rec.ID, latest, err)
		}
		job, err := jobs.GetByID(ctx, f.JobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.EffectivePriceCents() != 22000 {
			t.Fatalf("expected verified price to be authoritative, got %d", job.EffectivePriceCents())
		}
	})

	t.Run("respond twice conflicts", func(t *testing.T) {
		f := testinfra.SeedJob(t, pool, "in_progress", 20000, false)
		rec := pendingRecord(t, repo, f, 24000)
		now := time.Now()
		if err := repo.OpenApproval(ctx, OpenApprovalParams{
			JobID: f.JobID, VerificationID: rec.ID, ProID: f.ProID, VerifiedPriceCents: 24000, AdjustmentCents: 4000,
			RequestedAt: now, ExpiresAt: now.Add(30 * time.Minute),
		}); err != nil {
			t.Fatalf("open approval: %v", err)
		}
		err := repo.OpenApproval(ctx, OpenApprovalParams{
			JobID: f.JobID, VerificationID: rec.ID, ProID: f.ProID, VerifiedPriceCents: 25000, AdjustmentCents: 5000,
			RequestedAt: now, ExpiresAt: now.Add(30 * time.Minute),
		})
		if apperr.GetKind(err) != apperr.KindConflict {
			t.Fatalf("expected conflict for second open, got %v", err)
		}

		approved := true
		job, err := repo.ResolveApproval(ctx, ResolveParams{JobID: f.JobID, Approved: &approved, RespondedAt: now})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if job.PriceApprovalPending || job.EffectivePriceCents() != 24000 {
			t.Fatalf("unexpected job after approval %+v", job)
		}

		rejected := false
		_, err = repo.ResolveApproval(ctx, ResolveParams{JobID: f.JobID, Approved: &rejected, RespondedAt: now})
		if apperr.GetKind(err) != apperr.KindConflict {
			t.Fatalf("expected conflict on second response, got %v", err)
		}
		after, _ := jobs.GetByID(ctx, f.JobID)
		if after.Status != jobsdomain.StatusInProgress || after.CustomerApprovedPriceAdjustment == nil || !*after.CustomerApprovedPriceAdjustment {
			t.Fatalf("second response changed the job: %+v", after)
		}
	})

	t.Run("superseded verification cannot open an approval", func(t *testing.T) {
		f := testinfra.SeedJob(t, pool, "in_progress", 20000, false)
		older := pendingRecord(t, repo, f, 26000)
		newer := pendingRecord(t, repo, f, 27000)
		now := time.Now()
		err := repo.OpenApproval(ctx, OpenApprovalParams{
			JobID: f.JobID, VerificationID: older.ID, ProID: f.ProID, VerifiedPriceCents: 26000, AdjustmentCents: 6000,
			RequestedAt: now, ExpiresAt: now.Add(30 * time.Minute),
		})
		if apperr.GetKind(err) != apperr.KindConflict {
			t.Fatalf("expected conflict for superseded verification, got %v", err)
		}
		if job, _ := jobs.GetByID(ctx, f.JobID); job.PriceApprovalPending {
			t.Fatal("superseded verification opened an approval")
		}
		if err := repo.OpenApproval(ctx, OpenApprovalParams{
			JobID: f.JobID, VerificationID: newer.ID, ProID: f.ProID, VerifiedPriceCents: 27000, AdjustmentCents: 7000,
			RequestedAt: now, ExpiresAt: now.Add(30 * time.Minute),
		}); err != nil {
			t.Fatalf("open approval with latest verification: %v", err)
		}
	})

	t.Run("reject cancels from every active status", func(t *testing.T) {
		for _, status := range []string{"accepted", "en_route", "in_progress"} {
			f := testinfra.SeedJob(t, pool, status, 20000, false)
			rec := pendingRecord(t, repo, f, 30000)
			now := time.Now()
			if err := repo.OpenApproval(ctx, OpenApprovalParams{
				JobID: f.JobID, VerificationID: rec.ID, ProID: f.ProID, VerifiedPriceCents: 30000, AdjustmentCents: 10000,
				RequestedAt: now, ExpiresAt: now.Add(30 * time.Minute),
			}); err != nil {
				t.Fatalf("%s: open approval: %v", status, err)
			}
			rejected := false
			reason := jobsdomain.CancelReasonPriceRejected
			job, err := repo.ResolveApproval(ctx, ResolveParams{JobID: f.JobID, Approved: &rejected, RespondedAt: now, CancelReason: &reason})
			if err != nil {
				t.Fatalf("%s: resolve: %v", status, err)
			}
			if job.Status != jobsdomain.StatusCancelled || job.CancellationReason == nil || *job.CancellationReason != reason {
				t.Fatalf("%s: expected cancelled job, got %+v", status, job)
			}
		}
	})

	t.Run("overdue approvals are listed", func(t *testing.T) {
		f := testinfra.SeedJob(t, pool, "in_progress", 20000, false)
		rec := pendingRecord(t, repo, f, 30000)
		past := time.Now().Add(-time.Hour)
		if err := repo.OpenApproval(ctx, OpenApprovalParams{
			JobID: f.JobID, VerificationID: rec.ID, ProID: f.ProID, VerifiedPriceCents: 30000, AdjustmentCents: 10000,
			RequestedAt: past, ExpiresAt: past.Add(30 * time.Minute),
		}); err != nil {
			t.Fatalf("open approval: %v", err)
		}
		ids, err := repo.ListExpiredApprovals(ctx, time.Now(), 500)
		if err != nil {
			t.Fatalf("list expired: %v", err)
		}
		found := false
		for _, id := range ids {
			found = found || id == f.JobID
		}
		if !found {
			t.Fatalf("expected overdue approval for %s", f.JobID)
		}
	})
}
