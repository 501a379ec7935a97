package handler

import (
	"net/http"

	"jobflow_backend/internal/jobs/service"
	"jobflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidJobID = "invalid job ID"

// Handler handles HTTP requests for jobs.
type Handler struct {
	svc *service.Service
}

// New creates a jobs handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Get returns a job snapshot.
// GET /api/v1/jobs/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidJobID, nil)
		return
	}
	rc, ok := httpkit.MustGetRequestContext(c)
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), rc, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
