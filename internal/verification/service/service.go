// Package service implements price verification and the customer approval cycle.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobflow_backend/internal/adapters/storage"
	"jobflow_backend/internal/events"
	jobsdomain "jobflow_backend/internal/jobs/domain"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/pricing"
	"jobflow_backend/internal/verification/repository"
	"jobflow_backend/internal/verification/transport"
	"jobflow_backend/internal/vision"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"
	"jobflow_backend/platform/reqctx"
	"jobflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgNotAssignedPro     = "only the assigned pro can verify this job's price"
	msgNotCustomer        = "only the job's customer can respond to a price approval"
	msgNotParticipant     = "only participants of this job can view its price verification"
	msgEvidenceRequired   = "either detectedParams or mediaKeys is required"
	msgMediaUnavailable   = "media analysis is not available, submit detectedParams instead"
	msgForeignMedia       = "media keys must belong to this job"
	msgMediaNotUploaded   = "one or more media keys have not been uploaded"
	msgApprovalExpired    = "the price approval has expired"
	msgVerificationForJob = "verification does not belong to this job"
	msgNoApprovalNeeded   = "verification was auto-approved, no customer approval is needed"

	// DefaultApprovalTimeout bounds how long a customer has to answer.
	DefaultApprovalTimeout = 30 * time.Minute

	// manualConfidence applies to params a pro typed in without a confidence.
	manualConfidence = 1.0
	sweepBatchSize   = 100
)

// ScopeAnalyzer derives scope parameters from uploaded media.
type ScopeAnalyzer interface {
	Analyze(ctx context.Context, serviceType string, mediaKeys []string) (vision.Analysis, error)
}

// ExpiryScheduler arranges for ExpireApproval to run at the deadline.
type ExpiryScheduler interface {
	ScheduleApprovalExpiry(ctx context.Context, jobID uuid.UUID, at time.Time) error
}

// Deps groups the collaborators of the service. Analyzer, Expiry and Metrics are optional.
type Deps struct {
	Repo            repository.Repository
	Jobs            jobsrepo.Reader
	Engine          *pricing.Engine
	Analyzer        ScopeAnalyzer
	Expiry          ExpiryScheduler
	EventBus        events.Bus
	Metrics         *metrics.Registry
	Log             *logger.Logger
	ApprovalTimeout time.Duration
	Now             func() time.Time
}

// Service provides price verification business logic.
type Service struct {
	repo     repository.Repository
	jobs     jobsrepo.Reader
	engine   *pricing.Engine
	analyzer ScopeAnalyzer
	expiry   ExpiryScheduler
	eventBus events.Bus
	metrics  *metrics.Registry
	log      *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

// New creates a new verification service.
func New(d Deps) *Service {
	timeout := d.ApprovalTimeout
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	engine := d.Engine
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultThresholdBps)
	}
	return &Service{
		repo:     d.Repo,
		jobs:     d.Jobs,
		engine:   engine,
		analyzer: d.Analyzer,
		expiry:   d.Expiry,
		eventBus: d.EventBus,
		metrics:  d.Metrics,
		log:      d.Log,
		timeout:  timeout,
		now:      now,
	}
}

// Preview runs the engine against the evidence without persisting anything.
func (s *Service) Preview(ctx context.Context, rc reqctx.RequestContext, req transport.VerifyPriceRequest) (transport.PreviewResponse, error) {
	job, err := s.onSiteJobForPro(ctx, rc, req.JobID)
	if err != nil {
		return transport.PreviewResponse{}, err
	}

	ev, err := s.evaluate(ctx, job, req.EvidenceRequest)
	if err != nil {
		return transport.PreviewResponse{}, err
	}
	return transport.PreviewResponse{Result: ev.result, AnalysisReasoning: ev.reasoning}, nil
}

// Record persists a verification. When the change is within the threshold the
// verified price becomes the job's price immediately.
func (s *Service) Record(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID, req transport.RecordVerificationRequest) (transport.VerificationResponse, error) {
	job, err := s.onSiteJobForPro(ctx, rc, jobID)
	if err != nil {
		return transport.VerificationResponse{}, err
	}
	if job.PriceApprovalPending {
		return transport.VerificationResponse{}, apperr.Conflict(repository.MsgApprovalPending)
	}

	ev, err := s.evaluate(ctx, job, req.EvidenceRequest)
	if err != nil {
		return transport.VerificationResponse{}, err
	}

	params, err := json.Marshal(ev.result.DetectedParams)
	if err != nil {
		return transport.VerificationResponse{}, fmt.Errorf("encode detected params: %w", err)
	}

	rec, err := s.repo.Create(ctx, repository.CreateParams{
		JobID:                job.ID,
		ProID:                rc.UserID,
		Method:               req.Method,
		DetectedParams:       params,
		Confidence:           ev.result.Confidence,
		VerifiedPriceCents:   ev.result.VerifiedPriceCents,
		OriginalPriceCents:   ev.result.OriginalPriceCents,
		PriceDifferenceCents: ev.result.PriceDifferenceCents,
		PercentageDifference: ev.result.PercentageDifference,
		AutoApproved:         ev.result.AutoApproved,
		LowConfidence:        ev.result.LowConfidence,
		Reason:               ev.result.Reason,
	})
	if err != nil {
		s.guardRejected("record_price_verification", job.ID, err)
		return transport.VerificationResponse{}, err
	}

	s.eventBus.Publish(ctx, events.PriceVerificationRecorded{
		BaseEvent:          events.NewBaseEvent(),
		JobID:              job.ID,
		VerificationID:     rec.ID,
		ProID:              rc.UserID,
		AutoApproved:       rec.AutoApproved,
		OriginalPriceCents: rec.OriginalPriceCents,
		VerifiedPriceCents: rec.VerifiedPriceCents,
	})
	return ToVerificationResponse(rec), nil
}

// RequestApproval asks the customer to accept a verification outside the threshold.
func (s *Service) RequestApproval(ctx context.Context, rc reqctx.RequestContext, req transport.RequestApprovalRequest) (transport.ApprovalStateResponse, error) {
	job, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return transport.ApprovalStateResponse{}, err
	}
	if !job.IsAssignedPro(rc.UserID) {
		return transport.ApprovalStateResponse{}, apperr.Forbidden(msgNotAssignedPro)
	}

	rec, err := s.repo.GetByID(ctx, req.VerificationID)
	if err != nil {
		return transport.ApprovalStateResponse{}, err
	}
	if rec.JobID != job.ID {
		return transport.ApprovalStateResponse{}, apperr.Validation(msgVerificationForJob)
	}
	if rec.AutoApproved {
		return transport.ApprovalStateResponse{}, apperr.Conflict(msgNoApprovalNeeded)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.timeout)
	// Refused when rec is no longer the job's latest verification.
	err = s.repo.OpenApproval(ctx, repository.OpenApprovalParams{
		JobID:              job.ID,
		VerificationID:     rec.ID,
		ProID:              rc.UserID,
		VerifiedPriceCents: rec.VerifiedPriceCents,
		AdjustmentCents:    rec.PriceDifferenceCents,
		ProNotes:           sanitize.OptionalText(req.ProNotes),
		RequestedAt:        now,
		ExpiresAt:          expiresAt,
	})
	if err != nil {
		s.guardRejected("request_price_approval", job.ID, err)
		return transport.ApprovalStateResponse{}, err
	}

	if s.expiry != nil {
		if err := s.expiry.ScheduleApprovalExpiry(ctx, job.ID, expiresAt); err != nil && s.log != nil {
			// The cron sweep still expires the approval.
			s.log.Warn("failed to schedule price approval expiry", "jobId", job.ID, "error", err)
		}
	}

	s.eventBus.Publish(ctx, events.PriceApprovalRequested{
		BaseEvent:            events.NewBaseEvent(),
		JobID:                job.ID,
		VerificationID:       rec.ID,
		CustomerID:           job.CustomerID,
		ProID:                rc.UserID,
		ServiceType:          job.ServiceType,
		OriginalPriceCents:   rec.OriginalPriceCents,
		VerifiedPriceCents:   rec.VerifiedPriceCents,
		PercentageDifference: rec.PercentageDifference,
		ExpiresAt:            expiresAt,
		ProNotes:             deref(sanitize.OptionalText(req.ProNotes)),
	})

	updated, err := s.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return transport.ApprovalStateResponse{}, err
	}
	return toStateResponse(updated, &rec), nil
}

// RespondToApproval records the customer's answer. A rejection cancels the job.
func (s *Service) RespondToApproval(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID, req transport.ApprovePriceChangeRequest) (transport.ApprovalStateResponse, error) {
	if req.Approved == nil {
		return transport.ApprovalStateResponse{}, apperr.Validation("approved is required")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return transport.ApprovalStateResponse{}, err
	}
	if !job.IsCustomer(rc.UserID) {
		return transport.ApprovalStateResponse{}, apperr.Forbidden(msgNotCustomer)
	}
	if !job.PriceApprovalPending {
		s.guardRejected("respond_price_approval", job.ID, apperr.Conflict(repository.MsgNoApprovalPending))
		return transport.ApprovalStateResponse{}, apperr.Conflict(repository.MsgNoApprovalPending)
	}

	now := s.now().UTC()
	if job.PriceApprovalExpiresAt != nil && now.After(*job.PriceApprovalExpiresAt) {
		if err := s.ExpireApproval(ctx, job.ID); err != nil {
			return transport.ApprovalStateResponse{}, err
		}
		return transport.ApprovalStateResponse{}, apperr.Gone(msgApprovalExpired)
	}

	approved := *req.Approved
	params := repository.ResolveParams{
		JobID:         job.ID,
		Approved:      &approved,
		CustomerNotes: sanitize.OptionalText(req.CustomerNotes),
		RespondedAt:   now,
	}
	outcome := events.ApprovalOutcomeApproved
	if !approved {
		reason := jobsdomain.CancelReasonPriceRejected
		params.CancelReason = &reason
		outcome = events.ApprovalOutcomeRejected
	}

	updated, err := s.repo.ResolveApproval(ctx, params)
	if err != nil {
		s.guardRejected("respond_price_approval", job.ID, err)
		return transport.ApprovalStateResponse{}, err
	}
	s.metrics.ObserveApprovalResponse(outcome)
	s.publishResolved(ctx, updated, outcome, deref(params.CustomerNotes))

	return s.stateWithLatest(ctx, updated)
}

// ExpireApproval closes an unanswered approval whose deadline passed. It is
// idempotent: jobs without a due pending approval are left alone.
func (s *Service) ExpireApproval(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.PriceApprovalPending || job.PriceApprovalExpiresAt == nil {
		return nil
	}
	now := s.now().UTC()
	if now.Before(*job.PriceApprovalExpiresAt) {
		return nil
	}

	params := repository.ResolveParams{JobID: job.ID, RespondedAt: now}
	if job.Status.In(jobsdomain.CancellableStatuses...) {
		reason := jobsdomain.CancelReasonPriceExpired
		params.CancelReason = &reason
	}

	updated, err := s.repo.ResolveApproval(ctx, params)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindConflict {
			// Answered or expired concurrently.
			return nil
		}
		return err
	}
	s.metrics.ObserveApprovalResponse(events.ApprovalOutcomeExpired)
	s.publishResolved(ctx, updated, events.ApprovalOutcomeExpired, "")
	return nil
}

// SweepExpired expires every overdue approval and reports how many it processed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredApprovals(ctx, s.now().UTC(), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	var errs []error
	done := 0
	for _, id := range ids {
		if err := s.ExpireApproval(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("expire approval for job %s: %w", id, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// GetState returns the approval fields of a job and its latest verification.
func (s *Service) GetState(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID) (transport.ApprovalStateResponse, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return transport.ApprovalStateResponse{}, err
	}
	allowed := rc.IsAdmin() || job.IsCustomer(rc.UserID) || job.IsAssignedPro(rc.UserID)
	if !allowed && job.BusinessAccountID != nil {
		allowed, err = s.jobs.IsBusinessMember(ctx, *job.BusinessAccountID, rc.UserID)
		if err != nil {
			return transport.ApprovalStateResponse{}, err
		}
	}
	if !allowed {
		return transport.ApprovalStateResponse{}, apperr.Forbidden(msgNotParticipant)
	}
	return s.stateWithLatest(ctx, job)
}

// HandleExpiryDue reacts to the scheduler's expiry task.
func (s *Service) HandleExpiryDue(ctx context.Context, e events.PriceApprovalExpiryDue) error {
	return s.ExpireApproval(ctx, e.JobID)
}

type evaluation struct {
	result    pricing.Result
	reasoning string
}

// evaluate resolves the scope from params or media and runs the engine.
func (s *Service) evaluate(ctx context.Context, job jobsdomain.Job, req transport.EvidenceRequest) (evaluation, error) {
	if len(req.DetectedParams) == 0 && len(req.MediaKeys) == 0 {
		return evaluation{}, apperr.Validation(msgEvidenceRequired)
	}

	detected := pricing.Params{}
	confidence := manualConfidence
	var reasoning string

	if len(req.MediaKeys) > 0 {
		for _, key := range req.MediaKeys {
			if !storage.KeyBelongsToJob(key, job.ID) {
				return evaluation{}, apperr.Validation(msgForeignMedia)
			}
		}
		if s.analyzer == nil {
			return evaluation{}, apperr.Validation(msgMediaUnavailable)
		}
		analysis, err := s.analyzer.Analyze(ctx, string(pricing.NormalizeServiceType(job.ServiceType)), req.MediaKeys)
		if err != nil {
			if errors.Is(err, vision.ErrNoMedia) {
				return evaluation{}, apperr.Validation(err.Error())
			}
			if errors.Is(err, storage.ErrObjectNotFound) {
				return evaluation{}, apperr.Validation(msgMediaNotUploaded)
			}
			return evaluation{}, apperr.Upstream("scope analysis failed", err)
		}
		for k, v := range analysis.DetectedParams {
			detected[k] = v
		}
		confidence = analysis.Confidence
		reasoning = analysis.Reasoning
	}
	// Explicit params from the pro win over the analyzer's.
	for k, v := range req.DetectedParams {
		detected[k] = v
	}
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	var inputs pricing.Params
	if len(job.QuoteInputs) > 0 {
		if err := json.Unmarshal(job.QuoteInputs, &inputs); err != nil && s.log != nil {
			s.log.Warn("ignoring unreadable quote inputs", "jobId", job.ID, "error", err)
		}
	}

	result, err := s.engine.Verify(
		pricing.Quote{FinalPriceCents: job.OriginalPriceCents, Inputs: inputs},
		pricing.Evidence{
			ServiceType: pricing.ServiceType(job.ServiceType),
			Detected:    detected,
			Method:      pricing.Method(req.Method),
			Confidence:  confidence,
		},
	)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindInvalidScope {
			return evaluation{}, appErr.WithDetails(result)
		}
		return evaluation{}, err
	}
	s.metrics.ObserveVerification(result.AutoApproved)
	return evaluation{result: result, reasoning: reasoning}, nil
}

func (s *Service) onSiteJobForPro(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID) (jobsdomain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return jobsdomain.Job{}, err
	}
	if !job.IsAssignedPro(rc.UserID) {
		return jobsdomain.Job{}, apperr.Forbidden(msgNotAssignedPro)
	}
	if !job.Status.In(jobsdomain.OnSiteStatuses...) {
		return jobsdomain.Job{}, jobsrepo.ConflictForStatus(job.Status, jobsdomain.OnSiteStatuses)
	}
	return job, nil
}

func (s *Service) stateWithLatest(ctx context.Context, job jobsdomain.Job) (transport.ApprovalStateResponse, error) {
	rec, err := s.repo.GetLatestForJob(ctx, job.ID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return toStateResponse(job, nil), nil
		}
		return transport.ApprovalStateResponse{}, err
	}
	return toStateResponse(job, &rec), nil
}

func (s *Service) publishResolved(ctx context.Context, job jobsdomain.Job, outcome, notes string) {
	var proID uuid.UUID
	if job.AssignedProID != nil {
		proID = *job.AssignedProID
	}
	var verified int64
	if job.VerifiedPriceCents != nil {
		verified = *job.VerifiedPriceCents
	}
	s.eventBus.Publish(ctx, events.PriceApprovalResolved{
		BaseEvent:          events.NewBaseEvent(),
		JobID:              job.ID,
		CustomerID:         job.CustomerID,
		ProID:              proID,
		Outcome:            outcome,
		OriginalPriceCents: job.OriginalPriceCents,
		VerifiedPriceCents: verified,
		JobCancelled:       job.Status == jobsdomain.StatusCancelled,
		CustomerNotes:      notes,
	})
}

func (s *Service) guardRejected(operation string, jobID uuid.UUID, err error) {
	if apperr.GetKind(err) != apperr.KindConflict {
		return
	}
	s.metrics.ObserveGuardConflict(operation)
	if s.log != nil {
		s.log.GuardRejected(operation, jobID.String(), err.Error())
	}
}

// ToVerificationResponse maps a record onto its API shape.
func ToVerificationResponse(r repository.Record) transport.VerificationResponse {
	return transport.VerificationResponse{
		ID:                   r.ID,
		JobID:                r.JobID,
		Method:               r.Method,
		DetectedParams:       r.DetectedParams,
		Confidence:           r.Confidence,
		VerifiedPriceCents:   r.VerifiedPriceCents,
		OriginalPriceCents:   r.OriginalPriceCents,
		PriceDifferenceCents: r.PriceDifferenceCents,
		PercentageDifference: r.PercentageDifference,
		AutoApproved:         r.AutoApproved,
		LowConfidence:        r.LowConfidence,
		Reason:               r.Reason,
		CreatedAt:            r.CreatedAt,
	}
}

func toStateResponse(job jobsdomain.Job, rec *repository.Record) transport.ApprovalStateResponse {
	resp := transport.ApprovalStateResponse{
		JobID:                           job.ID,
		Status:                          string(job.Status),
		OriginalPriceCents:              job.OriginalPriceCents,
		VerifiedPriceCents:              job.VerifiedPriceCents,
		PriceAdjustmentCents:            job.PriceAdjustmentCents,
		PriceApprovalPending:            job.PriceApprovalPending,
		CustomerApprovedPriceAdjustment: job.CustomerApprovedPriceAdjustment,
		PriceApprovalRequestedAt:        job.PriceApprovalRequestedAt,
		PriceApprovalRespondedAt:        job.PriceApprovalRespondedAt,
		PriceApprovalExpiresAt:          job.PriceApprovalExpiresAt,
	}
	if rec != nil {
		v := ToVerificationResponse(*rec)
		resp.LatestVerification = &v
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
