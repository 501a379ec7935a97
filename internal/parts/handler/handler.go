package handler

import (
	"context"
	"net/http"

	"jobflow_backend/internal/parts/transport"
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
	msgInvalidRequestID = "invalid parts request ID"
)

// Service is the parts behaviour the handler exposes.
type Service interface {
	Flag(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID, req transport.FlagPartsRequest) (transport.PartsRequestResponse, error)
	Approve(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID, req transport.ApprovePartsRequest) (transport.PartsRequestResponse, error)
	Deny(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID, req transport.DenyPartsRequest) (transport.PartsRequestResponse, error)
	MarkSourced(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID, req transport.MarkSourcedRequest) (transport.PartsRequestResponse, error)
	MarkInstalled(ctx context.Context, rc reqctx.RequestContext, requestID uuid.UUID) (transport.PartsRequestResponse, error)
	ListByJob(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID) (transport.PartsRequestListResponse, error)
	ListForBusiness(ctx context.Context, rc reqctx.RequestContext, req transport.ListBusinessRequest) (transport.PartsRequestListResponse, error)
	SweepStale(ctx context.Context) (int, error)
}

// Handler handles HTTP requests for parts requests.
type Handler struct {
	svc Service
	val *validator.Validator
}

// New creates a parts handler.
func New(svc Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Flag opens a parts request and pauses the job.
// POST /api/v1/jobs/:id/parts-request
func (h *Handler) Flag(c *gin.Context) {
	jobID, ok := parseID(c, msgInvalidJobID)
	if !ok {
		return
	}
	var req transport.FlagPartsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.Flag(c.Request.Context(), rc, jobID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// Approve approves a pending request.
// PUT /api/v1/parts-requests/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	id, ok := parseID(c, msgInvalidRequestID)
	if !ok {
		return
	}
	var req transport.ApprovePartsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.Approve(c.Request.Context(), rc, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Deny denies a pending request. The body is optional.
// PUT /api/v1/parts-requests/:id/deny
func (h *Handler) Deny(c *gin.Context) {
	id, ok := parseID(c, msgInvalidRequestID)
	if !ok {
		return
	}
	var req transport.DenyPartsRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.Deny(c.Request.Context(), rc, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// MarkSourced records the parts as bought.
// PUT /api/v1/parts-requests/:id/sourced
func (h *Handler) MarkSourced(c *gin.Context) {
	id, ok := parseID(c, msgInvalidRequestID)
	if !ok {
		return
	}
	var req transport.MarkSourcedRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.MarkSourced(c.Request.Context(), rc, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// MarkInstalled closes the request and resumes the job.
// PUT /api/v1/parts-requests/:id/installed
func (h *Handler) MarkInstalled(c *gin.Context) {
	id, ok := parseID(c, msgInvalidRequestID)
	if !ok {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.MarkInstalled(c.Request.Context(), rc, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListByJob lists a job's parts requests.
// GET /api/v1/jobs/:id/parts-requests
func (h *Handler) ListByJob(c *gin.Context) {
	jobID, ok := parseID(c, msgInvalidJobID)
	if !ok {
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.ListByJob(c.Request.Context(), rc, jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListForBusiness lists requests across the caller's business accounts.
// GET /api/v1/business/parts-requests
func (h *Handler) ListForBusiness(c *gin.Context) {
	var req transport.ListBusinessRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.ListForBusiness(c.Request.Context(), rc, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
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

func parseID(c *gin.Context, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msg, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// SweepReminders sends due parts reminders now.
// POST /api/v1/admin/sweeps/parts-reminders
func (h *Handler) SweepReminders(c *gin.Context) {
	n, err := h.svc.SweepStale(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SweepResponse{Processed: n})
}
