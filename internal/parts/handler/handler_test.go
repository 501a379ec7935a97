package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobflow_backend/internal/parts/domain"
	"jobflow_backend/internal/parts/transport"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/httpkit"
	"jobflow_backend/platform/reqctx"
	"jobflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubService struct {
	err        error
	called     string
	lastStatus string
	lastDeny   transport.DenyPartsRequest
}

func (s *stubService) result(name string) (transport.PartsRequestResponse, error) {
	s.called = name
	return transport.PartsRequestResponse{ID: uuid.New(), Status: name}, s.err
}

func (s *stubService) Flag(context.Context, reqctx.RequestContext, uuid.UUID, transport.FlagPartsRequest) (transport.PartsRequestResponse, error) {
	return s.result("pending")
}

func (s *stubService) Approve(context.Context, reqctx.RequestContext, uuid.UUID, transport.ApprovePartsRequest) (transport.PartsRequestResponse, error) {
	return s.result("approved")
}

func (s *stubService) Deny(_ context.Context, _ reqctx.RequestContext, _ uuid.UUID, req transport.DenyPartsRequest) (transport.PartsRequestResponse, error) {
	s.lastDeny = req
	return s.result("denied")
}

func (s *stubService) MarkSourced(context.Context, reqctx.RequestContext, uuid.UUID, transport.MarkSourcedRequest) (transport.PartsRequestResponse, error) {
	return s.result("sourced")
}

func (s *stubService) MarkInstalled(context.Context, reqctx.RequestContext, uuid.UUID) (transport.PartsRequestResponse, error) {
	return s.result("installed")
}

func (s *stubService) ListByJob(context.Context, reqctx.RequestContext, uuid.UUID) (transport.PartsRequestListResponse, error) {
	s.called = "listByJob"
	return transport.PartsRequestListResponse{Items: []transport.PartsRequestResponse{}}, s.err
}

func (s *stubService) ListForBusiness(_ context.Context, _ reqctx.RequestContext, req transport.ListBusinessRequest) (transport.PartsRequestListResponse, error) {
	s.called = "listForBusiness"
	s.lastStatus = req.Status
	return transport.PartsRequestListResponse{Items: []transport.PartsRequestResponse{}}, s.err
}

func (s *stubService) SweepStale(context.Context) (int, error) {
	s.called = "sweepStale"
	return 3, s.err
}

func newRouter(t *testing.T, svc Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	val := validator.New()
	if err := val.RegisterValidation("supplier_source", validator.OneOf(domain.SupplierSources...)); err != nil {
		t.Fatalf("register validation: %v", err)
	}
	rc := reqctx.RequestContext{UserID: uuid.New(), Roles: []string{reqctx.RolePro}}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextRequestKey, rc)
		c.Next()
	})
	h := New(svc, val)
	r.POST("/jobs/:id/parts-request", h.Flag)
	r.GET("/jobs/:id/parts-requests", h.ListByJob)
	r.GET("/business/parts-requests", h.ListForBusiness)
	r.PUT("/parts-requests/:id/approve", h.Approve)
	r.PUT("/parts-requests/:id/deny", h.Deny)
	r.PUT("/parts-requests/:id/sourced", h.MarkSourced)
	r.PUT("/parts-requests/:id/installed", h.MarkInstalled)
	r.POST("/admin/sweeps/parts-reminders", h.SweepReminders)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	jobPath := "/jobs/" + uuid.NewString()
	reqPath := "/parts-requests/" + uuid.NewString()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		svcErr     error
		wantStatus int
		wantCall   string
	}{
		{"flag", http.MethodPost, jobPath + "/parts-request", `{"description":"new faucet cartridge","estimatedCostCents":4500}`, nil, http.StatusCreated, "pending"},
		{"flag without description", http.MethodPost, jobPath + "/parts-request", `{"estimatedCostCents":4500}`, nil, http.StatusBadRequest, ""},
		{"flag negative estimate", http.MethodPost, jobPath + "/parts-request", `{"description":"faucet","estimatedCostCents":-1}`, nil, http.StatusBadRequest, ""},
		{"flag conflict", http.MethodPost, jobPath + "/parts-request", `{"description":"faucet"}`, apperr.Conflict("an open parts request already exists for this job"), http.StatusConflict, "pending"},
		{"flag bad job id", http.MethodPost, "/jobs/abc/parts-request", `{"description":"faucet"}`, nil, http.StatusBadRequest, ""},
		{"approve", http.MethodPut, reqPath + "/approve", `{"supplierSource":"platform_partner"}`, nil, http.StatusOK, "approved"},
		{"approve unknown supplier", http.MethodPut, reqPath + "/approve", `{"supplierSource":"neighbour"}`, nil, http.StatusBadRequest, ""},
		{"approve forbidden", http.MethodPut, reqPath + "/approve", `{"supplierSource":"pm"}`, apperr.Forbidden("only the paying party can decide on this parts request"), http.StatusForbidden, "approved"},
		{"deny without body", http.MethodPut, reqPath + "/deny", "", nil, http.StatusOK, "denied"},
		{"sourced", http.MethodPut, reqPath + "/sourced", `{"actualCostCents":5230}`, nil, http.StatusOK, "sourced"},
		{"sourced missing cost", http.MethodPut, reqPath + "/sourced", `{}`, nil, http.StatusBadRequest, ""},
		{"installed not sourced", http.MethodPut, reqPath + "/installed", "", apperr.Conflict("parts request is not sourced"), http.StatusConflict, "installed"},
		{"list by job", http.MethodGet, jobPath + "/parts-requests", "", nil, http.StatusOK, "listByJob"},
		{"business list bad status", http.MethodGet, "/business/parts-requests?status=lost", "", nil, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.svcErr}
			w := do(newRouter(t, svc), tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if svc.called != tt.wantCall {
				t.Fatalf("expected call %q, got %q", tt.wantCall, svc.called)
			}
		})
	}
}

func TestDenyWithReason(t *testing.T) {
	svc := &stubService{}
	w := do(newRouter(t, svc), http.MethodPut, "/parts-requests/"+uuid.NewString()+"/deny", `{"reason":"tenant supplies it"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.lastDeny.Reason == nil || *svc.lastDeny.Reason != "tenant supplies it" {
		t.Fatalf("unexpected deny request %+v", svc.lastDeny)
	}
}

func TestBusinessListStatusFilter(t *testing.T) {
	svc := &stubService{}
	w := do(newRouter(t, svc), http.MethodGet, "/business/parts-requests?status=pending", "")
	if w.Code != http.StatusOK || svc.lastStatus != "pending" {
		t.Fatalf("expected pending filter, got %d %q", w.Code, svc.lastStatus)
	}
}

func TestSweepRemindersReportsProcessed(t *testing.T) {
	svc := &stubService{}
	w := do(newRouter(t, svc), http.MethodPost, "/admin/sweeps/parts-reminders", "")
	if w.Code != http.StatusOK || svc.called != "sweepStale" {
		t.Fatalf("expected sweep call, got %d %q", w.Code, svc.called)
	}
	if !strings.Contains(w.Body.String(), `"processed":3`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
