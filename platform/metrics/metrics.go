// Package metrics exposes Prometheus collectors for the workflow.
// A nil *Registry is valid and records nothing, so tests and tools can skip it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg                 *prometheus.Registry
	Verifications       *prometheus.CounterVec
	ApprovalResponses   *prometheus.CounterVec
	PartsTransitions    *prometheus.CounterVec
	GuardConflicts      *prometheus.CounterVec
	OutboxDeliveries    *prometheus.CounterVec
	ExpensesLogged      prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobflow_price_verifications_total",
		Help: "Price verifications by decision.",
	}, []string{"decision"})
	approvals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobflow_price_approval_responses_total",
		Help: "Customer responses to price approvals by outcome.",
	}, []string{"outcome"})
	parts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobflow_parts_transitions_total",
		Help: "Parts request transitions by target status.",
	}, []string{"to"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobflow_guard_conflicts_total",
		Help: "Guarded updates that matched no row.",
	}, []string{"operation"})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobflow_outbox_deliveries_total",
		Help: "Notification outbox deliveries by channel and result.",
	}, []string{"channel", "result"})
	expenses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobflow_expenses_logged_total",
		Help: "Parts expenses written to the accounting ledger.",
	})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobflow_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	r.MustRegister(verifications, approvals, parts, conflicts, outbox, expenses, httpDuration)
	return &Registry{
		reg:                 r,
		Verifications:       verifications,
		ApprovalResponses:   approvals,
		PartsTransitions:    parts,
		GuardConflicts:      conflicts,
		OutboxDeliveries:    outbox,
		ExpensesLogged:      expenses,
		HTTPRequestDuration: httpDuration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) ObserveVerification(autoApproved bool) {
	if r == nil {
		return
	}
	decision := "approval_required"
	if autoApproved {
		decision = "auto_approved"
	}
	r.Verifications.WithLabelValues(decision).Inc()
}

func (r *Registry) ObserveApprovalResponse(outcome string) {
	if r == nil {
		return
	}
	r.ApprovalResponses.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObservePartsTransition(to string) {
	if r == nil {
		return
	}
	r.PartsTransitions.WithLabelValues(to).Inc()
}

func (r *Registry) ObserveGuardConflict(operation string) {
	if r == nil {
		return
	}
	r.GuardConflicts.WithLabelValues(operation).Inc()
}

func (r *Registry) ObserveOutboxDelivery(channel string, ok bool) {
	if r == nil {
		return
	}
	result := "failed"
	if ok {
		result = "succeeded"
	}
	r.OutboxDeliveries.WithLabelValues(channel, result).Inc()
}

func (r *Registry) ObserveExpenseLogged() {
	if r == nil {
		return
	}
	r.ExpensesLogged.Inc()
}

// GinMiddleware records request latency keyed by the matched route template.
func (r *Registry) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if r == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
