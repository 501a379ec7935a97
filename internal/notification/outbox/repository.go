// Package outbox persists notifications until the scheduler delivers them.
//
// Rows move pending -> enqueued (dispatcher) -> processing (worker) and end in
// succeeded or failed. A transient delivery error puts the row back to pending
// with a later run_at.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusEnqueued   Status = "enqueued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Delivery channels and payload templates.
const (
	KindEmail    = "email"
	KindWhatsApp = "whatsapp"

	TemplateEmailSend    = "email_send"
	TemplateWhatsAppSend = "whatsapp_send"
)

const (
	defaultClaimLimit = 50
	// Rows due further out than this stay in Postgres instead of sitting in Redis.
	claimHorizon = time.Hour

	recordColumns = `id, kind, template, payload, run_at, status, attempts`
)

var errNotConfigured = errors.New("outbox repository not configured")

type Record struct {
	ID       uuid.UUID       `db:"id"`
	Kind     string          `db:"kind"`
	Template string          `db:"template"`
	Payload  json.RawMessage `db:"payload"`
	RunAt    time.Time       `db:"run_at"`
	Status   Status          `db:"status"`
	Attempts int             `db:"attempts"`
}

// Done reports whether the row reached a final state.
func (r Record) Done() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

type InsertParams struct {
	Kind     string
	Template string
	Payload  any
	// RunAt defaults to now.
	RunAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errNotConfigured
	}
	if p.Kind == "" || p.Template == "" {
		return uuid.Nil, apperr.Validation("outbox kind and template are required")
	}
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	runAt := p.RunAt
	if runAt.IsZero() {
		runAt = r.now()
	}

	id := uuid.New()
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO notification_outbox (id, kind, template, payload, run_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, p.Kind, p.Template, payload, runAt.UTC(),
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox record: %w", err)
	}
	return id, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, errNotConfigured
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM notification_outbox WHERE id = $1`, id)
	if err != nil {
		return Record{}, fmt.Errorf("get outbox record: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Record])
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.NotFound("outbox record not found")
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan outbox record: %w", err)
	}
	return rec, nil
}

// ClaimPending marks up to limit pending rows that fall due within the claim
// horizon as enqueued and returns them, oldest first. SKIP LOCKED keeps two
// dispatchers from claiming the same row.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errNotConfigured
	}
	if limit < 1 {
		limit = defaultClaimLimit
	}

	var claimed []Record
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			WITH due AS (
				SELECT id FROM notification_outbox
				WHERE status = 'pending' AND run_at <= $2
				ORDER BY run_at
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			UPDATE notification_outbox o
			SET status = 'enqueued', updated_at = now()
			FROM due
			WHERE o.id = due.id
			RETURNING o.id, o.kind, o.template, o.payload, o.run_at, o.status, o.attempts`,
			limit, r.now().Add(claimHorizon).UTC())
		if err != nil {
			return err
		}
		claimed, err = pgx.CollectRows(rows, pgx.RowToStructByName[Record])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}
	return claimed, nil
}

// MarkPending hands an enqueued row back to the dispatcher.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	return r.update(ctx, id, `status = 'pending', last_error = $2`, lastError)
}

// MarkProcessing counts a delivery attempt.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, `status = 'processing', attempts = attempts + 1`)
}

func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, `status = 'succeeded', last_error = NULL`)
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.update(ctx, id, `status = 'failed', last_error = $2`, lastError)
}

// ScheduleRetry returns the row to pending, due at runAt.
func (r *Repository) ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	return r.update(ctx, id, `status = 'pending', last_error = $2, run_at = $3`, lastError, runAt.UTC())
}

// update applies set to row id; set may reference args as $2 onwards.
func (r *Repository) update(ctx context.Context, id uuid.UUID, set string, args ...any) error {
	if r == nil || r.pool == nil {
		return errNotConfigured
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE notification_outbox SET `+set+`, updated_at = now() WHERE id = $1`,
		append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update outbox record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("outbox record not found")
	}
	return nil
}
