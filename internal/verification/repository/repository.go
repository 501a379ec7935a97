package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	jobsdomain "jobflow_backend/internal/jobs/domain"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	msgVerificationNotFound = "price verification not found"
	// MsgApprovalPending is returned when a new verification or approval would clobber a pending one.
	MsgApprovalPending = "a price approval is already pending for this job"
	// MsgNoApprovalPending is returned when there is nothing to respond to.
	MsgNoApprovalPending = "no price approval is pending for this job"
	// MsgStaleVerification is returned when an approval cites a superseded verification.
	MsgStaleVerification = "a newer verification exists for this job"

	recordColumns = `id, service_request_id, method, detected_params, confidence,
		verified_price_cents, original_price_cents, price_difference_cents,
		percentage_difference, auto_approved, low_confidence, reason,
		created_by_pro_id, created_at`
)

// Repo is the pgx implementation of Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.JobID, &r.Method, &r.DetectedParams, &r.Confidence,
		&r.VerifiedPriceCents, &r.OriginalPriceCents, &r.PriceDifferenceCents,
		&r.PercentageDifference, &r.AutoApproved, &r.LowConfidence, &r.Reason,
		&r.CreatedByProID, &r.CreatedAt)
	return r, err
}

// Create stores a verification. An auto-approved one also becomes the job's verified price.
func (r *Repo) Create(ctx context.Context, p CreateParams) (Record, error) {
	var rec Record
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		job, err := jobsrepo.GetJob(ctx, tx, p.JobID, true)
		if err != nil {
			return err
		}
		if job.PriceApprovalPending {
			return apperr.Conflict(MsgApprovalPending)
		}
		if !job.Status.In(jobsdomain.OnSiteStatuses...) {
			return jobsrepo.ConflictForStatus(job.Status, jobsdomain.OnSiteStatuses)
		}

		rec, err = scanRecord(tx.QueryRow(ctx,
			`INSERT INTO price_verifications (
				id, service_request_id, method, detected_params, confidence,
				verified_price_cents, original_price_cents, price_difference_cents,
				percentage_difference, auto_approved, low_confidence, reason, created_by_pro_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING `+recordColumns,
			uuid.New(), p.JobID, p.Method, p.DetectedParams, p.Confidence,
			p.VerifiedPriceCents, p.OriginalPriceCents, p.PriceDifferenceCents,
			p.PercentageDifference, p.AutoApproved, p.LowConfidence, p.Reason, p.ProID,
		))
		if err != nil {
			return fmt.Errorf("insert price verification: %w", err)
		}

		if !p.AutoApproved {
			return nil
		}
		_, err = tx.Exec(ctx,
			`UPDATE service_requests
			 SET verified_price_cents = $2,
			     price_adjustment_cents = $3,
			     customer_approved_price_adjustment = NULL,
			     updated_at = now()
			 WHERE id = $1 AND price_approval_pending = false`,
			p.JobID, p.VerifiedPriceCents, p.PriceDifferenceCents,
		)
		if err != nil {
			return fmt.Errorf("apply verified price: %w", err)
		}
		return nil
	})
	return rec, err
}

// GetByID loads one verification.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM price_verifications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.NotFound(msgVerificationNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get price verification: %w", err)
	}
	return rec, nil
}

// GetLatestForJob returns the most recent verification on a job.
func (r *Repo) GetLatestForJob(ctx context.Context, jobID uuid.UUID) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM price_verifications
		 WHERE service_request_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.NotFound(msgVerificationNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get latest price verification: %w", err)
	}
	return rec, nil
}

// OpenApproval flags the job as awaiting the customer. It only succeeds for the
// assigned pro, an active job with nothing pending, and the job's latest verification.
func (r *Repo) OpenApproval(ctx context.Context, p OpenApprovalParams) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE service_requests
		 SET price_approval_pending = true,
		     verified_price_cents = $3,
		     price_adjustment_cents = $4,
		     customer_approved_price_adjustment = NULL,
		     price_approval_requested_at = $5,
		     price_approval_expires_at = $6,
		     price_approval_responded_at = NULL,
		     pro_notes = COALESCE($7, pro_notes),
		     updated_at = now()
		 WHERE id = $1
		   AND assigned_pro_id = $2
		   AND price_approval_pending = false
		   AND status = ANY($8)
		   AND EXISTS (
		       SELECT 1 FROM price_verifications cited
		       WHERE cited.id = $9 AND cited.service_request_id = $1
		         AND NOT EXISTS (
		             SELECT 1 FROM price_verifications newer
		             WHERE newer.service_request_id = $1 AND newer.created_at > cited.created_at))`,
		p.JobID, p.ProID, p.VerifiedPriceCents, p.AdjustmentCents,
		p.RequestedAt, p.ExpiresAt, p.ProNotes, jobsdomain.Strings(jobsdomain.CancellableStatuses),
		p.VerificationID,
	)
	if err != nil {
		return fmt.Errorf("open price approval: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	job, err := jobsrepo.GetJob(ctx, r.pool, p.JobID, false)
	if err != nil {
		return err
	}
	if job.PriceApprovalPending {
		return apperr.Conflict(MsgApprovalPending)
	}
	if !job.IsAssignedPro(p.ProID) {
		return apperr.Forbidden("only the assigned pro can request a price approval")
	}
	latest, err := r.GetLatestForJob(ctx, p.JobID)
	if err != nil {
		return err
	}
	if latest.ID != p.VerificationID {
		return apperr.Conflict(MsgStaleVerification)
	}
	return jobsrepo.ConflictForStatus(job.Status, jobsdomain.CancellableStatuses)
}

// ResolveApproval records the customer's answer, or an expiry when Approved is nil,
// and cancels the job when CancelReason is set.
func (r *Repo) ResolveApproval(ctx context.Context, p ResolveParams) (jobsdomain.Job, error) {
	var job jobsdomain.Job
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE service_requests
			 SET price_approval_pending = false,
			     customer_approved_price_adjustment = $2,
			     price_approval_responded_at = $3,
			     customer_notes = COALESCE($4, customer_notes),
			     updated_at = now()
			 WHERE id = $1 AND price_approval_pending = true`,
			p.JobID, p.Approved, p.RespondedAt, p.CustomerNotes,
		)
		if err != nil {
			return fmt.Errorf("resolve price approval: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if _, err := jobsrepo.GetJob(ctx, tx, p.JobID, false); err != nil {
				return err
			}
			return apperr.Conflict(MsgNoApprovalPending)
		}

		if p.CancelReason != nil {
			err := jobsrepo.Transition(ctx, tx, jobsrepo.TransitionParams{
				JobID:              p.JobID,
				From:               jobsdomain.CancellableStatuses,
				To:                 jobsdomain.StatusCancelled,
				CancellationReason: p.CancelReason,
			})
			if err != nil {
				return err
			}
		}

		job, err = jobsrepo.GetJob(ctx, tx, p.JobID, false)
		return err
	})
	return job, err
}

// ListExpiredApprovals returns jobs whose approval deadline has passed.
func (r *Repo) ListExpiredApprovals(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM service_requests
		 WHERE price_approval_pending = true AND price_approval_expires_at <= $1
		 ORDER BY price_approval_expires_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired approvals: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired approval: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
