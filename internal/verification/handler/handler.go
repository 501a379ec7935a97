package handler

import (
	"context"
	"net/http"

	"jobflow_backend/internal/verification/transport"
	"jobflow_backend/platform/httpkit"
	"jobflow_backend/platform/reqctx"
	"jobflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidJobID     = "invalid job ID"
)

// Service is the verification behaviour the handler exposes.
type Service interface {
	Preview(ctx context.Context, rc reqctx.RequestContext, req transport.VerifyPriceRequest) (transport.PreviewResponse, error)
	Record(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID, req transport.RecordVerificationRequest) (transport.VerificationResponse, error)
	RequestApproval(ctx context.Context, rc reqctx.RequestContext, req transport.RequestApprovalRequest) (transport.ApprovalStateResponse, error)
	RespondToApproval(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID, req transport.ApprovePriceChangeRequest) (transport.ApprovalStateResponse, error)
	GetState(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID) (transport.ApprovalStateResponse, error)
	SweepExpired(ctx context.Context) (int, error)
}

// Handler handles HTTP requests for price verification.
type Handler struct {
	svc Service
	val *validator.Validator
}

// New creates a verification handler.
func New(svc Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// VerifyPrice previews a verification.
// POST /api/v1/jobs/verify-price
func (h *Handler) VerifyPrice(c *gin.Context) {
	var req transport.VerifyPriceRequest
	if !h.bind(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.Preview(c.Request.Context(), rc, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RecordVerification persists a verification.
// PATCH /api/v1/jobs/:id/price-verification
func (h *Handler) RecordVerification(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	var req transport.RecordVerificationRequest
	if !h.bind(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.Record(c.Request.Context(), rc, jobID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RequestApproval asks the customer to approve a price change.
// POST /api/v1/jobs/request-price-approval
func (h *Handler) RequestApproval(c *gin.Context) {
	var req transport.RequestApprovalRequest
	if !h.bind(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.RequestApproval(c.Request.Context(), rc, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ApprovePriceChange records the customer's answer.
// POST /api/v1/jobs/:id/approve-price-change
func (h *Handler) ApprovePriceChange(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	var req transport.ApprovePriceChangeRequest
	if !h.bind(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.RespondToApproval(c.Request.Context(), rc, jobID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetVerification returns the approval state and latest verification.
// GET /api/v1/jobs/:id/price-verification
func (h *Handler) GetVerification(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.GetState(c.Request.Context(), rc, jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SweepExpired runs the overdue approval sweep now instead of waiting for cron.
// POST /api/v1/admin/sweeps/price-approvals
func (h *Handler) SweepExpired(c *gin.Context) {
	n, err := h.svc.SweepExpired(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SweepResponse{Processed: n})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return false
	}
	return true
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidJobID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
