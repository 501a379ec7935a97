package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	jobsdomain "jobflow_backend/internal/jobs/domain"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/parts/domain"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	msgRequestNotFound = "parts request not found"
	// MsgOpenRequestExists is returned when a job already waits on parts.
	MsgOpenRequestExists = "an open parts request already exists for this job"
	// MsgApprovalPending blocks flagging while the customer decides on a price change.
	MsgApprovalPending = "cannot pause a job while a price approval is pending"

	requestColumns = `id, service_request_id, requested_by_pro_id, business_account_id, description,
		photo_key, estimated_cost_cents, actual_cost_cents, receipt_key, supplier_source, status,
		approved_by_id, denied_by_id, deny_reason, created_at, approved_at, denied_at,
		sourced_at, installed_at, last_reminded_at, updated_at`

	defaultListLimit = 100
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

func scanRequest(row pgx.Row) (domain.Request, error) {
	var (
		r        domain.Request
		status   string
		supplier *string
	)
	err := row.Scan(&r.ID, &r.JobID, &r.RequestedByProID, &r.BusinessAccountID, &r.Description,
		&r.PhotoKey, &r.EstimatedCostCents, &r.ActualCostCents, &r.ReceiptKey, &supplier, &status,
		&r.ApprovedByID, &r.DeniedByID, &r.DenyReason, &r.CreatedAt, &r.ApprovedAt, &r.DeniedAt,
		&r.SourcedAt, &r.InstalledAt, &r.LastRemindedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Request{}, err
	}
	r.Status = domain.Status(status)
	if supplier != nil {
		s := domain.SupplierSource(*supplier)
		r.SupplierSource = &s
	}
	return r, nil
}

func collect(rows pgx.Rows) ([]domain.Request, error) {
	defer rows.Close()
	out := make([]domain.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parts request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Flag inserts a pending request and walks the job to paused_parts.
func (r *Repo) Flag(ctx context.Context, p FlagParams) (domain.Request, error) {
	var req domain.Request
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

		var open bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM parts_requests WHERE service_request_id = $1 AND status = ANY($2))`,
			p.JobID, statusStrings(domain.OpenStatuses),
		).Scan(&open); err != nil {
			return fmt.Errorf("check open parts requests: %w", err)
		}
		if open {
			return apperr.Conflict(MsgOpenRequestExists)
		}

		req, err = scanRequest(tx.QueryRow(ctx,
			`INSERT INTO parts_requests (
				id, service_request_id, requested_by_pro_id, business_account_id,
				description, photo_key, estimated_cost_cents, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+requestColumns,
			uuid.New(), p.JobID, p.ProID, job.BusinessAccountID,
			p.Description, p.PhotoKey, p.EstimatedCostCents, string(domain.StatusPending),
		))
		if err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict(MsgOpenRequestExists)
			}
			return fmt.Errorf("insert parts request: %w", err)
		}

		return jobsrepo.WalkTo(ctx, tx, p.JobID, job.Status, jobsdomain.StatusPausedParts)
	})
	return req, err
}

// GetByID loads one parts request.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	return getRequest(ctx, r.pool, id)
}

func getRequest(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.Request, error) {
	req, err := scanRequest(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM parts_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Request{}, apperr.NotFound(msgRequestNotFound)
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("get parts request: %w", err)
	}
	return req, nil
}

// guarded moves request id to `to` from the single status the domain allows,
// setting status as $3 plus whatever setSQL assigns from $4 on. Zero rows
// becomes NotFound or a Conflict naming the precondition.
func guarded(ctx context.Context, q db.DBTX, id uuid.UUID, to domain.Status, setSQL string, args ...any) (domain.Request, error) {
	from, ok := domain.Source(to)
	if !ok {
		return domain.Request{}, fmt.Errorf("parts request cannot move to %s", to)
	}
	query := `UPDATE parts_requests SET status = $3, ` + setSQL + `, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + requestColumns
	req, err := scanRequest(q.QueryRow(ctx, query, append([]any{id, string(from), string(to)}, args...)...))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Request{}, fmt.Errorf("update parts request: %w", err)
	}
	if _, err := getRequest(ctx, q, id); err != nil {
		return domain.Request{}, err
	}
	return domain.Request{}, apperr.Conflict(fmt.Sprintf("parts request is not %s", from))
}

func resumeJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) error {
	return jobsrepo.Transition(ctx, tx, jobsrepo.TransitionParams{
		JobID: jobID,
		From:  []jobsdomain.Status{jobsdomain.StatusPausedParts},
		To:    jobsdomain.StatusInProgress,
	})
}

// Approve moves a pending request to approved and records the supplier.
func (r *Repo) Approve(ctx context.Context, p ApproveParams) (domain.Request, error) {
	return guarded(ctx, r.pool, p.RequestID, domain.StatusApproved,
		`supplier_source = $4, approved_by_id = $5, approved_at = $6`,
		string(p.SupplierSource), p.ApproverID, p.At)
}

// Deny closes a pending request and resumes the job in the same transaction.
func (r *Repo) Deny(ctx context.Context, p DenyParams) (domain.Request, error) {
	var req domain.Request
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		req, err = guarded(ctx, tx, p.RequestID, domain.StatusDenied,
			`denied_by_id = $4, deny_reason = $5, denied_at = $6`,
			p.DenierID, p.Reason, p.At)
		if err != nil {
			return err
		}
		return resumeJob(ctx, tx, req.JobID)
	})
	return req, err
}

// MarkSourced records what the parts actually cost.
func (r *Repo) MarkSourced(ctx context.Context, p SourcedParams) (domain.Request, error) {
	return guarded(ctx, r.pool, p.RequestID, domain.StatusSourced,
		`actual_cost_cents = $4, receipt_key = COALESCE($5, receipt_key), sourced_at = $6`,
		p.ActualCostCents, p.ReceiptKey, p.At)
}

// MarkInstalled closes a sourced request and resumes the job.
func (r *Repo) MarkInstalled(ctx context.Context, requestID uuid.UUID, at time.Time) (domain.Request, error) {
	var req domain.Request
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		req, err = guarded(ctx, tx, requestID, domain.StatusInstalled,
			`installed_at = $4`, at)
		if err != nil {
			return err
		}
		return resumeJob(ctx, tx, req.JobID)
	})
	return req, err
}

// ListByJob returns every request on a job, newest first.
func (r *Repo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Request, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM parts_requests
		 WHERE service_request_id = $1
		 ORDER BY created_at DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list parts requests: %w", err)
	}
	return collect(rows)
}

// ListForMember returns requests on jobs of the business accounts userID belongs to.
func (r *Repo) ListForMember(ctx context.Context, userID uuid.UUID, f ListFilter) ([]domain.Request, error) {
	limit := f.Limit
	if limit < 1 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM parts_requests
		 WHERE business_account_id IN (
		     SELECT business_account_id FROM business_account_members WHERE user_id = $1
		 )
		   AND ($2::text IS NULL OR status = $2)
		 ORDER BY created_at DESC
		 LIMIT $3`, userID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list business parts requests: %w", err)
	}
	return collect(rows)
}

// ListStale returns pending and approved requests that have waited since before
// cutoff and were not reminded after it.
func (r *Repo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Request, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM parts_requests
		 WHERE status IN ('pending', 'approved')
		   AND COALESCE(last_reminded_at, approved_at, created_at) <= $1
		 ORDER BY created_at
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale parts requests: %w", err)
	}
	return collect(rows)
}

// MarkReminded stamps the last reminder so the sweep skips the request until it goes stale again.
func (r *Repo) MarkReminded(ctx context.Context, requestID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE parts_requests SET last_reminded_at = $2 WHERE id = $1`, requestID, at)
	if err != nil {
		return fmt.Errorf("mark parts request reminded: %w", err)
	}
	return nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
