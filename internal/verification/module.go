// Package verification prices on-site evidence against the quote and runs the
// customer approval cycle for changes outside the auto-approval band.
package verification

import (
	"context"

	"jobflow_backend/internal/events"
	apphttp "jobflow_backend/internal/http"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/internal/pricing"
	"jobflow_backend/internal/verification/handler"
	"jobflow_backend/internal/verification/repository"
	"jobflow_backend/internal/verification/service"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"
	"jobflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the configuration the module reads.
type Config interface {
	config.PricingConfig
	config.ApprovalConfig
}

// Options carries the optional collaborators of the module.
type Options struct {
	Analyzer service.ScopeAnalyzer
	Expiry   service.ExpiryScheduler
	Metrics  *metrics.Registry
}

// Module is the price verification bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the verification module.
func NewModule(pool *pgxpool.Pool, jobs jobsrepo.Reader, cfg Config, bus events.Bus, val *validator.Validator, opts Options, log *logger.Logger) *Module {
	svc := service.New(service.Deps{
		Repo:            repository.New(pool),
		Jobs:            jobs,
		Engine:          pricing.NewEngine(cfg.GetPriceThresholdBps()),
		Analyzer:        opts.Analyzer,
		Expiry:          opts.Expiry,
		EventBus:        bus,
		Metrics:         opts.Metrics,
		Log:             log,
		ApprovalTimeout: cfg.GetPriceApprovalTimeout(),
	})
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "verification"
}

// Service returns the service layer for the scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts price verification routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/jobs/verify-price", m.handler.VerifyPrice)
	ctx.Protected.POST("/jobs/request-price-approval", m.handler.RequestApproval)
	ctx.Protected.PATCH("/jobs/:id/price-verification", m.handler.RecordVerification)
	ctx.Protected.GET("/jobs/:id/price-verification", m.handler.GetVerification)
	ctx.Protected.POST("/jobs/:id/approve-price-change", m.handler.ApprovePriceChange)

	ctx.Admin.POST("/sweeps/price-approvals", m.handler.SweepExpired)
}

// RegisterHandlers subscribes to the scheduler's expiry events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.PriceApprovalExpiryDue{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.PriceApprovalExpiryDue:
		return m.service.HandleExpiryDue(ctx, e)
	default:
		return nil
	}
}

var _ apphttp.Module = (*Module)(nil)
