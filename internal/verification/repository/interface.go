package repository

import (
	"context"
	"encoding/json"
	"time"

	jobsdomain "jobflow_backend/internal/jobs/domain"

	"github.com/google/uuid"
)

// Record is a persisted price verification. Records are never updated.
type Record struct {
	ID                   uuid.UUID
	JobID                uuid.UUID
	Method               string
	DetectedParams       json.RawMessage
	Confidence           float64
	VerifiedPriceCents   int64
	OriginalPriceCents   int64
	PriceDifferenceCents int64
	PercentageDifference float64
	AutoApproved         bool
	LowConfidence        bool
	Reason               string
	CreatedByProID       uuid.UUID
	CreatedAt            time.Time
}

// CreateParams carries a verification to persist. When AutoApproved is set the
// job's verified price becomes authoritative in the same transaction.
type CreateParams struct {
	JobID                uuid.UUID
	ProID                uuid.UUID
	Method               string
	DetectedParams       json.RawMessage
	Confidence           float64
	VerifiedPriceCents   int64
	OriginalPriceCents   int64
	PriceDifferenceCents int64
	PercentageDifference float64
	AutoApproved         bool
	LowConfidence        bool
	Reason               string
}

// OpenApprovalParams marks a job as awaiting the customer's decision.
// VerificationID must be the job's latest verification when the update runs.
type OpenApprovalParams struct {
	JobID              uuid.UUID
	VerificationID     uuid.UUID
	ProID              uuid.UUID
	VerifiedPriceCents int64
	AdjustmentCents    int64
	ProNotes           *string
	RequestedAt        time.Time
	ExpiresAt          time.Time
}

// ResolveParams closes a pending approval.
// Approved is nil when the approval expired without an answer.
type ResolveParams struct {
	JobID         uuid.UUID
	Approved      *bool
	CustomerNotes *string
	RespondedAt   time.Time
	// CancelReason, when set, cancels the job in the same transaction.
	CancelReason *string
}

// Repository persists verifications and the approval fields of service requests.
type Repository interface {
	Create(ctx context.Context, p CreateParams) (Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	GetLatestForJob(ctx context.Context, jobID uuid.UUID) (Record, error)
	OpenApproval(ctx context.Context, p OpenApprovalParams) error
	ResolveApproval(ctx context.Context, p ResolveParams) (jobsdomain.Job, error)
	ListExpiredApprovals(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
