package service

import (
	"context"

	"jobflow_backend/internal/jobs/domain"
	"jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/jobs/transport"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/reqctx"

	"github.com/google/uuid"
)

const msgNotParticipant = "only participants of this job can view it"

// Service provides read access to jobs.
type Service struct {
	repo repository.Reader
	log  *logger.Logger
}

// New creates a jobs service.
func New(repo repository.Reader, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Get returns a job snapshot to its customer, assigned pro, payer or an admin.
func (s *Service) Get(ctx context.Context, rc reqctx.RequestContext, id uuid.UUID) (transport.JobResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.JobResponse{}, err
	}

	allowed, err := s.canView(ctx, rc, job)
	if err != nil {
		return transport.JobResponse{}, err
	}
	if !allowed {
		return transport.JobResponse{}, apperr.Forbidden(msgNotParticipant)
	}
	return ToResponse(job), nil
}

func (s *Service) canView(ctx context.Context, rc reqctx.RequestContext, job domain.Job) (bool, error) {
	if rc.IsAdmin() || job.IsCustomer(rc.UserID) || job.IsAssignedPro(rc.UserID) {
		return true, nil
	}
	if job.BusinessAccountID == nil {
		return false, nil
	}
	return s.repo.IsBusinessMember(ctx, *job.BusinessAccountID, rc.UserID)
}

// ToResponse maps a job onto its API shape.
func ToResponse(j domain.Job) transport.JobResponse {
	return transport.JobResponse{
		ID:                              j.ID,
		CustomerID:                      j.CustomerID,
		AssignedProID:                   j.AssignedProID,
		BusinessAccountID:               j.BusinessAccountID,
		ServiceType:                     j.ServiceType,
		Status:                          string(j.Status),
		OriginalPriceCents:              j.OriginalPriceCents,
		EffectivePriceCents:             j.EffectivePriceCents(),
		QuoteInputs:                     j.QuoteInputs,
		VerifiedPriceCents:              j.VerifiedPriceCents,
		PriceAdjustmentCents:            j.PriceAdjustmentCents,
		PriceApprovalPending:            j.PriceApprovalPending,
		CustomerApprovedPriceAdjustment: j.CustomerApprovedPriceAdjustment,
		PriceApprovalRequestedAt:        j.PriceApprovalRequestedAt,
		PriceApprovalRespondedAt:        j.PriceApprovalRespondedAt,
		PriceApprovalExpiresAt:          j.PriceApprovalExpiresAt,
		ProNotes:                        j.ProNotes,
		CustomerNotes:                   j.CustomerNotes,
		CancellationReason:              j.CancellationReason,
		UpdatedAt:                       j.UpdatedAt,
	}
}
