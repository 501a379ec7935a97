// Package service implements the parts procurement flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobflow_backend/internal/adapters/storage"
	"jobflow_backend/internal/events"
	jobsdomain "jobflow_backend/internal/jobs/domain"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/parts/domain"
	"jobflow_backend/internal/parts/repository"
	"jobflow_backend/internal/parts/transport"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"
	"jobflow_backend/platform/reqctx"
	"jobflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgNotAssignedPro   = "only the assigned pro can do this"
	msgNotPayer         = "only the paying party can decide on this parts request"
	msgNotParticipant   = "only participants of this job can view its parts requests"
	msgForeignUpload    = "uploads must belong to this job"
	msgUnknownSupplier  = "unknown supplier source"
	msgInvalidStatus    = "invalid status filter"
	DefaultReminderWait = 24 * time.Hour
	sweepBatchSize      = 100
)

// Deps groups the collaborators of the service.
type Deps struct {
	Repo          repository.Repository
	Jobs          jobsrepo.Reader
	EventBus      events.Bus
	Metrics       *metrics.Registry
	Log           *logger.Logger
	ReminderAfter time.Duration
	Now           func() time.Time
}

// Service provides parts procurement business logic.
type Service struct {
	repo          repository.Repository
	jobs          jobsrepo.Reader
	eventBus      events.Bus
	metrics       *metrics.Registry
	log           *logger.Logger
	reminderAfter time.Duration
	now           func() time.Time
}

// New creates a parts service.
func New(d Deps) *Service {
	reminder := d.ReminderAfter
	if reminder <= 0 {
		reminder = DefaultReminderWait
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:          d.Repo,
		jobs:          d.Jobs,
		eventBus:      d.EventBus,
		metrics:       d.Metrics,
		log:           d.Log,
		reminderAfter: reminder,
		now:           now,
	}
}

// Flag opens a parts request and pauses the job.
func (s *Service) Flag(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID, req transport.FlagPartsRequest) (transport.PartsRequestResponse, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return transport.PartsRequestResponse{}, err
	}
	if !job.IsAssignedPro(rc.UserID) {
		return transport.PartsRequestResponse{}, apperr.Forbidden(msgNotAssignedPro)
	}
	photoKey := trimmed(req.PhotoKey)
	if photoKey != nil && !storage.KeyBelongsToJob(*photoKey, job.ID) {
		return transport.PartsRequestResponse{}, apperr.Validation(msgForeignUpload)
	}

	created, err := s.repo.Flag(ctx, repository.FlagParams{
		JobID:              job.ID,
		ProID:              rc.UserID,
		Description:        sanitize.Text(req.Description),
		PhotoKey:           photoKey,
		EstimatedCostCents: req.EstimatedCostCents,
	})
	if err != nil {
		s.guardRejected("flag_parts", job.ID, err)
		return transport.PartsRequestResponse{}, err
	}

	s.metrics.ObservePartsTransition(string(domain.StatusPending))
	s.eventBus.Publish(ctx, events.PartsRequestFlagged{
		BaseEvent:          events.NewBaseEvent(),
		RequestID:          created.ID,
		JobID:              created.JobID,
		ProID:              rc.UserID,
		BusinessAccountID:  created.BusinessAccountID,
		Description:        created.Description,
		EstimatedCostCents: created.EstimatedCostCents,
	})
	return ToResponse(created), nil
}

// Approve lets the payer approve a pending request. The job stays paused.
func (s *Service) Approve(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID, req transport.ApprovePartsRequest) (transport.PartsRequestResponse, error) {
	source, ok := parseSupplier(req.SupplierSource)
	if !ok {
		return transport.PartsRequestResponse{}, apperr.Validation(msgUnknownSupplier)
	}
	current, _, err := s.loadForPayer(ctx, rc, requestID)
	if err != nil {
		return transport.PartsRequestResponse{}, err
	}

	updated, err := s.repo.Approve(ctx, repository.ApproveParams{
		RequestID:      current.ID,
		ApproverID:     rc.UserID,
		SupplierSource: source,
		At:             s.now().UTC(),
	})
	if err != nil {
		s.guardRejected("approve_parts", current.ID, err)
		return transport.PartsRequestResponse{}, err
	}

	s.metrics.ObservePartsTransition(string(domain.StatusApproved))
	s.eventBus.Publish(ctx, events.PartsRequestApproved{
		BaseEvent:      events.NewBaseEvent(),
		RequestID:      updated.ID,
		JobID:          updated.JobID,
		ProID:          updated.RequestedByProID,
		Description:    updated.Description,
		SupplierSource: updated.Supplier(),
	})
	return ToResponse(updated), nil
}

// Deny lets the payer deny a pending request. The job resumes without cost impact.
func (s *Service) Deny(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID, req transport.DenyPartsRequest) (transport.PartsRequestResponse, error) {
	current, _, err := s.loadForPayer(ctx, rc, requestID)
	if err != nil {
		return transport.PartsRequestResponse{}, err
	}

	updated, err := s.repo.Deny(ctx, repository.DenyParams{
		RequestID: current.ID,
		DenierID:  rc.UserID,
		Reason:    sanitize.OptionalText(req.Reason),
		At:        s.now().UTC(),
	})
	if err != nil {
		s.guardRejected("deny_parts", current.ID, err)
		return transport.PartsRequestResponse{}, err
	}

	s.metrics.ObservePartsTransition(string(domain.StatusDenied))
	s.eventBus.Publish(ctx, events.PartsRequestDenied{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   updated.ID,
		JobID:       updated.JobID,
		ProID:       updated.RequestedByProID,
		Description: updated.Description,
		Reason:      deref(updated.DenyReason),
	})
	return ToResponse(updated), nil
}

// MarkSourced records that the pro bought the approved parts.
func (s *Service) MarkSourced(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID, req transport.MarkSourcedRequest) (transport.PartsRequestResponse, error) {
	if req.ActualCostCents == nil || *req.ActualCostCents < 0 {
		return transport.PartsRequestResponse{}, apperr.Validation("actualCostCents must be zero or more")
	}
	current, job, err := s.loadForPro(ctx, rc, requestID)
	if err != nil {
		return transport.PartsRequestResponse{}, err
	}
	receiptKey := trimmed(req.ReceiptKey)
	if receiptKey != nil && !storage.KeyBelongsToJob(*receiptKey, job.ID) {
		return transport.PartsRequestResponse{}, apperr.Validation(msgForeignUpload)
	}

	updated, err := s.repo.MarkSourced(ctx, repository.SourcedParams{
		RequestID:       current.ID,
		ActualCostCents: *req.ActualCostCents,
		ReceiptKey:      receiptKey,
		At:              s.now().UTC(),
	})
	if err != nil {
		s.guardRejected("source_parts", current.ID, err)
		return transport.PartsRequestResponse{}, err
	}

	s.metrics.ObservePartsTransition(string(domain.StatusSourced))
	s.eventBus.Publish(ctx, events.PartsRequestSourced{
		BaseEvent:         events.NewBaseEvent(),
		RequestID:         updated.ID,
		JobID:             updated.JobID,
		ProID:             updated.RequestedByProID,
		BusinessAccountID: updated.BusinessAccountID,
		Description:       updated.Description,
		ActualCostCents:   *req.ActualCostCents,
	})
	return ToResponse(updated), nil
}

// MarkInstalled closes the request and resumes the job.
func (s *Service) MarkInstalled(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID) (transport.PartsRequestResponse, error) {
	current, _, err := s.loadForPro(ctx, rc, requestID)
	if err != nil {
		return transport.PartsRequestResponse{}, err
	}

	updated, err := s.repo.MarkInstalled(ctx, current.ID, s.now().UTC())
	if err != nil {
		s.guardRejected("install_parts", current.ID, err)
		return transport.PartsRequestResponse{}, err
	}

	s.metrics.ObservePartsTransition(string(domain.StatusInstalled))
	s.eventBus.Publish(ctx, events.PartsRequestInstalled{
		BaseEvent:          events.NewBaseEvent(),
		RequestID:          updated.ID,
		JobID:              updated.JobID,
		ProID:              updated.RequestedByProID,
		Description:        updated.Description,
		EstimatedCostCents: updated.EstimatedCostCents,
		ActualCostCents:    updated.ActualCostCents,
		SupplierSource:     updated.Supplier(),
	})
	return ToResponse(updated), nil
}

// ListByJob returns a job's parts requests, newest first.
func (s *Service) ListByJob(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID) (transport.PartsRequestListResponse, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return transport.PartsRequestListResponse{}, err
	}
	allowed := rc.IsAdmin() || job.IsAssignedPro(rc.UserID)
	if !allowed {
		allowed, err = s.isPayer(ctx, rc, job)
		if err != nil {
			return transport.PartsRequestListResponse{}, err
		}
	}
	if !allowed {
		return transport.PartsRequestListResponse{}, apperr.Forbidden(msgNotParticipant)
	}

	items, err := s.repo.ListByJob(ctx, jobID)
	if err != nil {
		return transport.PartsRequestListResponse{}, err
	}
	return toList(items), nil
}

// ListForBusiness returns the requests of every business account the caller belongs to.
func (s *Service) ListForBusiness(ctx context.Context, rc reqctx.RequestContext, req transport.ListBusinessRequest) (transport.PartsRequestListResponse, error) {
	filter := repository.ListFilter{Limit: req.Limit}
	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return transport.PartsRequestListResponse{}, apperr.Validation(msgInvalidStatus)
		}
		filter.Status = &status
	}
	items, err := s.repo.ListForMember(ctx, rc.UserID, filter)
	if err != nil {
		return transport.PartsRequestListResponse{}, err
	}
	return toList(items), nil
}

// SweepStale publishes a reminder for every request waiting longer than the
// reminder interval. Requests never expire on their own.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	now := s.now().UTC()
	stale, err := s.repo.ListStale(ctx, now.Add(-s.reminderAfter), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, req := range stale {
		if err := s.repo.MarkReminded(ctx, req.ID, now); err != nil {
			errs = append(errs, err)
			continue
		}
		s.eventBus.Publish(ctx, events.PartsRequestStale{
			BaseEvent: events.NewBaseEvent(),
			RequestID: req.ID,
			JobID:     req.JobID,
			Status:    string(req.Status),
		})
	}
	return len(stale) - len(errs), errors.Join(errs...)
}

func (s *Service) loadForPayer(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID) (domain.Request, jobsdomain.Job, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return domain.Request{}, jobsdomain.Job{}, err
	}
	job, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return domain.Request{}, jobsdomain.Job{}, err
	}
	if rc.IsAdmin() {
		return req, job, nil
	}
	payer, err := s.isPayer(ctx, rc, job)
	if err != nil {
		return domain.Request{}, jobsdomain.Job{}, err
	}
	if !payer {
		return domain.Request{}, jobsdomain.Job{}, apperr.Forbidden(msgNotPayer)
	}
	return req, job, nil
}

func (s *Service) loadForPro(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID) (domain.Request, jobsdomain.Job, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return domain.Request{}, jobsdomain.Job{}, err
	}
	job, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return domain.Request{}, jobsdomain.Job{}, err
	}
	if !job.IsAssignedPro(rc.UserID) {
		return domain.Request{}, jobsdomain.Job{}, apperr.Forbidden(msgNotAssignedPro)
	}
	return req, job, nil
}

// isPayer: members of the property's business account pay when there is one,
// otherwise the customer does.
func (s *Service) isPayer(ctx context.Context, rc reqctx.RequestContext, job jobsdomain.Job) (bool, error) {
	if job.BusinessAccountID == nil {
		return job.IsCustomer(rc.UserID), nil
	}
	member, err := s.jobs.IsBusinessMember(ctx, *job.BusinessAccountID, rc.UserID)
	if err != nil {
		return false, fmt.Errorf("check business membership: %w", err)
	}
	return member, nil
}

func (s *Service) guardRejected(operation string, id uuid.UUID, err error) {
	if apperr.GetKind(err) != apperr.KindConflict {
		return
	}
	s.metrics.ObserveGuardConflict(operation)
	if s.log != nil {
		s.log.GuardRejected(operation, id.String(), err.Error())
	}
}

func parseSupplier(raw string) (domain.SupplierSource, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range domain.SupplierSources {
		if v == s {
			return domain.SupplierSource(v), true
		}
	}
	return "", false
}

// ToResponse maps a parts request onto its API shape.
func ToResponse(r domain.Request) transport.PartsRequestResponse {
	var supplier *string
	if r.SupplierSource != nil {
		s := string(*r.SupplierSource)
		supplier = &s
	}
	return transport.PartsRequestResponse{
		ID:                 r.ID,
		JobID:              r.JobID,
		RequestedByProID:   r.RequestedByProID,
		BusinessAccountID:  r.BusinessAccountID,
		Description:        r.Description,
		PhotoKey:           r.PhotoKey,
		EstimatedCostCents: r.EstimatedCostCents,
		ActualCostCents:    r.ActualCostCents,
		ReceiptKey:         r.ReceiptKey,
		SupplierSource:     supplier,
		Status:             string(r.Status),
		DenyReason:         r.DenyReason,
		CreatedAt:          r.CreatedAt,
		ApprovedAt:         r.ApprovedAt,
		DeniedAt:           r.DeniedAt,
		SourcedAt:          r.SourcedAt,
		InstalledAt:        r.InstalledAt,
	}
}

func toList(items []domain.Request) transport.PartsRequestListResponse {
	out := make([]transport.PartsRequestResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ToResponse(item))
	}
	return transport.PartsRequestListResponse{Items: out}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
