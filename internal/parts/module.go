// Package parts runs the nested procurement flow that pauses a job while
// parts are approved, bought and installed.
package parts

import (
	"jobflow_backend/internal/events"
	apphttp "jobflow_backend/internal/http"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/parts/domain"
	"jobflow_backend/internal/parts/handler"
	"jobflow_backend/internal/parts/repository"
	"jobflow_backend/internal/parts/service"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"
	"jobflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierSourceTag validates supplier_source request fields.
const SupplierSourceTag = "supplier_source"

// Module is the parts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the parts module and registers its validation tag.
func NewModule(pool *pgxpool.Pool, jobs jobsrepo.Reader, cfg config.PartsConfig, bus events.Bus, val *validator.Validator, reg *metrics.Registry, log *logger.Logger) (*Module, error) {
	if err := RegisterValidations(val); err != nil {
		return nil, err
	}
	svc := service.New(service.Deps{
		Repo:          repository.New(pool),
		Jobs:          jobs,
		EventBus:      bus,
		Metrics:       reg,
		Log:           log,
		ReminderAfter: cfg.GetPartsReminderAfter(),
	})
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}, nil
}

// RegisterValidations adds the parts request tags to val.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterValidation(SupplierSourceTag, validator.OneOf(domain.SupplierSources...))
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "parts"
}

// Service returns the service layer for the scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts parts routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/jobs/:id/parts-request", m.handler.Flag)
	ctx.Protected.GET("/jobs/:id/parts-requests", m.handler.ListByJob)
	ctx.Protected.GET("/business/parts-requests", m.handler.ListForBusiness)

	requests := ctx.Protected.Group("/parts-requests/:id")
	requests.PUT("/approve", m.handler.Approve)
	requests.PUT("/deny", m.handler.Deny)
	requests.PUT("/sourced", m.handler.MarkSourced)
	requests.PUT("/installed", m.handler.MarkInstalled)

	ctx.Admin.POST("/sweeps/parts-reminders", m.handler.SweepReminders)
}

var _ apphttp.Module = (*Module)(nil)
