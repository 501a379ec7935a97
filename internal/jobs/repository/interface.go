package repository

import (
	"context"

	"jobflow_backend/internal/jobs/domain"

	"github.com/google/uuid"
)

// TransitionParams describes a guarded status change.
type TransitionParams struct {
	JobID uuid.UUID
	// From lists the statuses the job must currently be in.
	From []domain.Status
	To   domain.Status
	// CancellationReason is stored when To is cancelled.
	CancellationReason *string
}

// Reader loads jobs and the people attached to them.
type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error)
	GetParticipants(ctx context.Context, job domain.Job) (domain.Participants, error)
	IsBusinessMember(ctx context.Context, businessAccountID, userID uuid.UUID) (bool, error)
}

// Writer applies lifecycle transitions.
type Writer interface {
	Transition(ctx context.Context, p TransitionParams) error
}

// Repository combines job reads and guarded writes.
type Repository interface {
	Reader
	Writer
}
