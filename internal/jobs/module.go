// Package jobs owns the service request lifecycle: the status machine and
// the guarded transitions other modules run inside their transactions.
package jobs

import (
	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/internal/jobs/handler"
	"jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/jobs/service"
	"jobflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the jobs bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates the jobs module.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	return &Module{
		handler: handler.New(svc),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "jobs"
}

// Repository exposes job reads and guarded transitions to other modules.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts job routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/jobs/:id", m.handler.Get)
}

var _ apphttp.Module = (*Module)(nil)
