package repository

import (
	"context"
	"time"

	"jobflow_backend/internal/parts/domain"

	"github.com/google/uuid"
)

// FlagParams opens a parts request and pauses the job.
type FlagParams struct {
	JobID              uuid.UUID
	ProID              uuid.UUID
	Description        string
	PhotoKey           *string
	EstimatedCostCents *int64
}

// ApproveParams moves a pending request to approved.
type ApproveParams struct {
	RequestID      uuid.UUID
	ApproverID     uuid.UUID
	SupplierSource domain.SupplierSource
	At             time.Time
}

// DenyParams moves a pending request to denied and resumes the job.
type DenyParams struct {
	RequestID uuid.UUID
	DenierID  uuid.UUID
	Reason    *string
	At        time.Time
}

// SourcedParams records the parts as bought.
type SourcedParams struct {
	RequestID       uuid.UUID
	ActualCostCents int64
	ReceiptKey      *string
	At              time.Time
}

// ListFilter narrows business account listings.
type ListFilter struct {
	Status *domain.Status
	Limit  int
}

// Repository persists parts requests. Every status change is a guarded update
// and changes that move the job run in the same transaction.
type Repository interface {
	Flag(ctx context.Context, p FlagParams) (domain.Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Request, error)
	Approve(ctx context.Context, p ApproveParams) (domain.Request, error)
	Deny(ctx context.Context, p DenyParams) (domain.Request, error)
	MarkSourced(ctx context.Context, p SourcedParams) (domain.Request, error)
	MarkInstalled(ctx context.Context, requestID uuid.UUID, at time.Time) (domain.Request, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Request, error)
	ListForMember(ctx context.Context, userID uuid.UUID, f ListFilter) ([]domain.Request, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Request, error)
	MarkReminded(ctx context.Context, requestID uuid.UUID, at time.Time) error
}
