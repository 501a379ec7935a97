package uploads

import (
	"net/http"

	"jobflow_backend/platform/httpkit"
	"jobflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler serves the presign endpoint.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates an uploads handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Presign issues a presigned upload URL.
// POST /api/v1/uploads/presign
func (h *Handler) Presign(c *gin.Context) {
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.Details(err))
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.Presign(c.Request.Context(), rc, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
