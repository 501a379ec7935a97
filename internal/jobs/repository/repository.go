package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobflow_backend/internal/jobs/domain"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	msgJobNotFound = "job not found"

	// JobColumns is the select list scanned by ScanJob; sr aliases service_requests
	// and bp the left-joined business_properties row.
	JobColumns = `sr.id, sr.customer_id, sr.assigned_pro_id, sr.property_id, bp.business_account_id,
		sr.service_type, sr.status, sr.original_price_cents, sr.quote_inputs,
		sr.verified_price_cents, sr.price_adjustment_cents, sr.price_approval_pending,
		sr.customer_approved_price_adjustment, sr.price_approval_requested_at,
		sr.price_approval_responded_at, sr.price_approval_expires_at,
		sr.pro_notes, sr.customer_notes, sr.cancellation_reason, sr.updated_at`

	jobFrom = `FROM service_requests sr
		LEFT JOIN business_properties bp ON bp.id = sr.property_id`
)

// Repo is the pgx implementation of Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a jobs repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// ScanJob reads a row selected with JobColumns.
func ScanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	var status string
	err := row.Scan(
		&j.ID, &j.CustomerID, &j.AssignedProID, &j.PropertyID, &j.BusinessAccountID,
		&j.ServiceType, &status, &j.OriginalPriceCents, &j.QuoteInputs,
		&j.VerifiedPriceCents, &j.PriceAdjustmentCents, &j.PriceApprovalPending,
		&j.CustomerApprovedPriceAdjustment, &j.PriceApprovalRequestedAt,
		&j.PriceApprovalRespondedAt, &j.PriceApprovalExpiresAt,
		&j.ProNotes, &j.CustomerNotes, &j.CancellationReason, &j.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	j.Status = domain.Status(status)
	return j, nil
}

// GetJob loads a job on any DBTX. lock adds FOR UPDATE OF sr.
func GetJob(ctx context.Context, q db.DBTX, id uuid.UUID, lock bool) (domain.Job, error) {
	query := `SELECT ` + JobColumns + ` ` + jobFrom + ` WHERE sr.id = $1`
	if lock {
		query += ` FOR UPDATE OF sr`
	}
	job, err := ScanJob(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, apperr.NotFound(msgJobNotFound)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByID loads a job without locking it.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	return GetJob(ctx, r.pool, id, false)
}

// Transition moves a job along a guarded status edge.
func (r *Repo) Transition(ctx context.Context, p TransitionParams) error {
	return Transition(ctx, r.pool, p)
}

// Transition performs the guarded update every lifecycle change goes through:
// the row only changes if its current status is one of p.From. Zero affected
// rows means a concurrent writer won or the job was never in an expected
// state, reported as Conflict (or NotFound when the job does not exist).
func Transition(ctx context.Context, q db.DBTX, p TransitionParams) error {
	if len(p.From) == 0 {
		return fmt.Errorf("transition to %s: no expected statuses", p.To)
	}
	for _, from := range p.From {
		if !domain.CanTransition(from, p.To) {
			return fmt.Errorf("illegal transition %s -> %s", from, p.To)
		}
	}

	tag, err := q.Exec(ctx,
		`UPDATE service_requests
		 SET status = $3,
		     cancellation_reason = COALESCE($4, cancellation_reason),
		     updated_at = now()
		 WHERE id = $1 AND status = ANY($2)`,
		p.JobID, domain.Strings(p.From), string(p.To), p.CancellationReason,
	)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = q.QueryRow(ctx, `SELECT status FROM service_requests WHERE id = $1`, p.JobID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(msgJobNotFound)
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}
	return ConflictForStatus(domain.Status(current), p.From)
}

// WalkTo moves a job from its current status to target along the shortest
// legal path, one guarded update per step. The caller supplies the status it
// observed, normally read under FOR UPDATE in the same transaction.
func WalkTo(ctx context.Context, q db.DBTX, jobID uuid.UUID, current, target domain.Status) error {
	path, ok := domain.Path(current, target)
	if !ok {
		return ConflictForStatus(current, []domain.Status{target})
	}
	from := current
	for _, step := range path {
		if err := Transition(ctx, q, TransitionParams{JobID: jobID, From: []domain.Status{from}, To: step}); err != nil {
			return err
		}
		from = step
	}
	return nil
}

// ConflictForStatus builds the Conflict returned when a job is not in an expected state.
func ConflictForStatus(current domain.Status, expected []domain.Status) error {
	return apperr.Conflict(fmt.Sprintf("job is %s, expected %s", current, strings.Join(domain.Strings(expected), " or "))).
		WithDetails(map[string]any{"status": current, "expected": expected})
}

// GetParticipants resolves contact details for everyone on the job.
func (r *Repo) GetParticipants(ctx context.Context, job domain.Job) (domain.Participants, error) {
	var out domain.Participants
	customer, err := r.contact(ctx, job.CustomerID)
	if err != nil {
		return out, err
	}
	out.Customer = customer

	if job.AssignedProID != nil {
		pro, err := r.contact(ctx, *job.AssignedProID)
		if err != nil {
			return out, err
		}
		out.Pro = &pro
	}

	if job.BusinessAccountID != nil {
		rows, err := r.pool.Query(ctx,
			`SELECT u.id, u.display_name, COALESCE(u.email, ''), COALESCE(u.phone, '')
			 FROM business_account_members m
			 JOIN users u ON u.id = m.user_id
			 WHERE m.business_account_id = $1
			 ORDER BY u.display_name`, *job.BusinessAccountID)
		if err != nil {
			return out, fmt.Errorf("list business members: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var c domain.Contact
			if err := rows.Scan(&c.UserID, &c.Name, &c.Email, &c.Phone); err != nil {
				return out, fmt.Errorf("scan business member: %w", err)
			}
			out.Payers = append(out.Payers, c)
		}
		if err := rows.Err(); err != nil {
			return out, fmt.Errorf("iterate business members: %w", err)
		}
	}
	return out, nil
}

func (r *Repo) contact(ctx context.Context, userID uuid.UUID) (domain.Contact, error) {
	c := domain.Contact{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT display_name, COALESCE(email, ''), COALESCE(phone, '') FROM users WHERE id = $1`,
		userID,
	).Scan(&c.Name, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, apperr.NotFound("user not found")
	}
	if err != nil {
		return c, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// IsBusinessMember reports whether userID belongs to the business account.
func (r *Repo) IsBusinessMember(ctx context.Context, businessAccountID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM business_account_members
			WHERE business_account_id = $1 AND user_id = $2
		)`, businessAccountID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check business membership: %w", err)
	}
	return ok, nil
}
