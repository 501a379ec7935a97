package uploads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobflow_backend/internal/adapters/storage"
	jobsdomain "jobflow_backend/internal/jobs/domain"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/httpkit"
	"jobflow_backend/platform/reqctx"
	"jobflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubJobs struct {
	jobs    map[uuid.UUID]jobsdomain.Job
	members map[uuid.UUID]bool
}

func (s stubJobs) GetByID(_ context.Context, id uuid.UUID) (jobsdomain.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return jobsdomain.Job{}, apperr.NotFound("job not found")
	}
	return job, nil
}

func (s stubJobs) GetParticipants(context.Context, jobsdomain.Job) (jobsdomain.Participants, error) {
	return jobsdomain.Participants{}, nil
}

func (s stubJobs) IsBusinessMember(_ context.Context, _ uuid.UUID, userID uuid.UUID) (bool, error) {
	return s.members[userID], nil
}

type stubPresigner struct {
	calls  int
	folder string
}

func (p *stubPresigner) GenerateUploadURL(_ context.Context, bucket, folder, fileName, _ string, _ int64) (*storage.PresignedURL, error) {
	p.calls++
	p.folder = folder
	return &storage.PresignedURL{
		URL:       "https://minio.local/" + bucket + "/" + folder + "/" + fileName,
		FileKey:   folder + "/" + fileName,
		ExpiresAt: time.Unix(1700000000, 0),
	}, nil
}

type fixture struct {
	svc       *Service
	presigner *stubPresigner
	job       jobsdomain.Job
	pro       uuid.UUID
	member    uuid.UUID
}

func newFixture() fixture {
	pro := uuid.New()
	member := uuid.New()
	account := uuid.New()
	job := jobsdomain.Job{
		ID:                uuid.New(),
		CustomerID:        uuid.New(),
		AssignedProID:     &pro,
		BusinessAccountID: &account,
		Status:            jobsdomain.StatusInProgress,
	}
	presigner := &stubPresigner{}
	jobs := stubJobs{
		jobs:    map[uuid.UUID]jobsdomain.Job{job.ID: job},
		members: map[uuid.UUID]bool{member: true},
	}
	return fixture{
		svc:       NewService(presigner, jobs, "job-evidence", 1024),
		presigner: presigner,
		job:       job,
		pro:       pro,
		member:    member,
	}
}

func TestPresign(t *testing.T) {
	f := newFixture()
	stranger := uuid.New()

	tests := []struct {
		name     string
		caller   uuid.UUID
		roles    []string
		purpose  string
		content  string
		size     int64
		wantKind apperr.Kind
	}{
		{name: "pro evidence", caller: f.pro, purpose: "evidence", content: "image/jpeg", size: 10},
		{name: "pro video", caller: f.pro, purpose: "evidence", content: "video/mp4", size: 1024},
		{name: "customer evidence", caller: f.job.CustomerID, purpose: "evidence", content: "image/png", size: 10, wantKind: apperr.KindForbidden},
		{name: "customer receipt", caller: f.job.CustomerID, purpose: "receipts", content: "application/pdf", size: 10},
		{name: "member receipt", caller: f.member, purpose: "receipts", content: "application/pdf", size: 10},
		{name: "stranger receipt", caller: stranger, purpose: "receipts", content: "application/pdf", size: 10, wantKind: apperr.KindForbidden},
		{name: "admin part photo", caller: stranger, roles: []string{reqctx.RoleAdmin}, purpose: "parts", content: "image/webp", size: 10},
		{name: "too large", caller: f.pro, purpose: "evidence", content: "image/jpeg", size: 2048, wantKind: apperr.KindValidation},
		{name: "bad content type", caller: f.pro, purpose: "evidence", content: "application/zip", size: 10, wantKind: apperr.KindValidation},
		{name: "video as part photo", caller: f.pro, purpose: "parts", content: "video/mp4", size: 10, wantKind: apperr.KindValidation},
		{name: "unknown purpose", caller: f.pro, purpose: "avatar", content: "image/jpeg", size: 10, wantKind: apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := reqctx.RequestContext{UserID: tt.caller, Roles: tt.roles}
			resp, err := f.svc.Presign(context.Background(), rc, PresignRequest{
				JobID:       f.job.ID,
				Purpose:     tt.purpose,
				FileName:    "photo.jpg",
				ContentType: tt.content,
				SizeBytes:   tt.size,
			})
			if tt.wantKind != apperr.KindUnknown {
				if apperr.GetKind(err) != tt.wantKind {
					t.Fatalf("expected %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !storage.KeyBelongsToJob(resp.FileKey, f.job.ID) {
				t.Fatalf("key %q is not under the job", resp.FileKey)
			}
			if resp.ExpiresAt != 1700000000 {
				t.Fatalf("unexpected expiry %d", resp.ExpiresAt)
			}
		})
	}
}

func TestPresignUsesPurposeFolder(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Presign(context.Background(), reqctx.RequestContext{UserID: f.pro}, PresignRequest{
		JobID: f.job.ID, Purpose: "Receipts", FileName: "r.pdf", ContentType: "application/pdf", SizeBytes: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := storage.JobFolder(f.job.ID, storage.PurposeReceipt); f.presigner.folder != want {
		t.Fatalf("expected folder %q, got %q", want, f.presigner.folder)
	}
}

func TestPresignUnknownJob(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Presign(context.Background(), reqctx.RequestContext{UserID: f.pro}, PresignRequest{
		JobID: uuid.New(), Purpose: "evidence", FileName: "a.jpg", ContentType: "image/jpeg", SizeBytes: 5,
	})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.presigner.calls != 0 {
		t.Fatalf("expected no presign for unknown job")
	}
}

func TestPresignHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	val := validator.New()
	if err := RegisterValidations(val); err != nil {
		t.Fatalf("register validations: %v", err)
	}
	h := NewHandler(f.svc, val)

	router := gin.New()
	router.POST("/uploads/presign", func(c *gin.Context) {
		c.Set(httpkit.ContextRequestKey, reqctx.RequestContext{UserID: f.pro})
		c.Next()
	}, h.Presign)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "ok", body: `{"jobId":"` + f.job.ID.String() + `","purpose":"evidence","fileName":"a.jpg","contentType":"image/jpeg","sizeBytes":10}`, want: http.StatusOK},
		{name: "bad purpose", body: `{"jobId":"` + f.job.ID.String() + `","purpose":"avatar","fileName":"a.jpg","contentType":"image/jpeg","sizeBytes":10}`, want: http.StatusBadRequest},
		{name: "malformed", body: `{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/uploads/presign", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}
