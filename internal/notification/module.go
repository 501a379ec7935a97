// Package notification turns workflow events into outbound email and WhatsApp
// messages. Handlers only write outbox rows; the scheduler delivers them, so a
// slow or failing channel never blocks a price or parts transition.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobflow_backend/internal/email"
	"jobflow_backend/internal/events"
	jobsdomain "jobflow_backend/internal/jobs/domain"
	"jobflow_backend/internal/notification/outbox"
	"jobflow_backend/internal/whatsapp"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message categories, stored on WhatsApp payloads and used in logs.
const (
	categoryPriceVerified  = "price_verified"
	categoryPriceApproval  = "price_approval_requested"
	categoryPriceResolved  = "price_approval_resolved"
	categoryPartsFlagged   = "parts_flagged"
	categoryPartsApproved  = "parts_approved"
	categoryPartsDenied    = "parts_denied"
	categoryPartsSourced   = "parts_sourced"
	categoryPartsInstalled = "parts_installed"
	categoryPartsStale     = "parts_reminder"
	statusAwaitingSourcing = "approved"
)

// JobDirectory resolves who to notify about a job.
type JobDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (jobsdomain.Job, error)
	GetParticipants(ctx context.Context, job jobsdomain.Job) (jobsdomain.Participants, error)
}

// OutboxStore is the subset of the outbox repository the module uses.
type OutboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
}

// WhatsAppSender sends WhatsApp messages.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// Deps are the collaborators of the module. Email and WhatsApp may be nil to
// disable a channel.
type Deps struct {
	Outbox   OutboxStore
	Jobs     JobDirectory
	Email    email.Sender
	WhatsApp WhatsAppSender
	Config   config.NotificationConfig
	Metrics  *metrics.Registry
	Log      *logger.Logger
}

// Module writes outbox rows for workflow events and delivers them when the
// scheduler reports them due.
type Module struct {
	outbox   OutboxStore
	jobs     JobDirectory
	email    email.Sender
	whatsapp WhatsAppSender
	cfg      config.NotificationConfig
	metrics  *metrics.Registry
	log      *logger.Logger
	now      func() time.Time
}

func New(deps Deps) *Module {
	return &Module{
		outbox:   deps.Outbox,
		jobs:     deps.Jobs,
		email:    deps.Email,
		whatsapp: deps.WhatsApp,
		cfg:      deps.Config,
		metrics:  deps.Metrics,
		log:      deps.Log,
		now:      time.Now,
	}
}

// Settings is the configuration read by Assemble.
type Settings interface {
	config.EmailConfig
	config.WhatsAppConfig
	config.NotificationConfig
}

// Assemble builds the module over the Postgres outbox with whichever delivery
// channels cfg enables.
func Assemble(pool *pgxpool.Pool, jobs JobDirectory, cfg Settings, reg *metrics.Registry, log *logger.Logger) (*Module, error) {
	sender, err := email.NewSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	deps := Deps{Outbox: outbox.New(pool), Jobs: jobs, Email: sender, Config: cfg, Metrics: reg, Log: log}
	if wa := whatsapp.NewClient(cfg, log); wa != nil {
		deps.WhatsApp = wa
	}
	return New(deps), nil
}

func (m *Module) Name() string { return "notification" }

// RegisterHandlers subscribes the module to every event that produces a
// message, plus the outbox due signal the scheduler worker publishes.
func (m *Module) RegisterHandlers(bus events.Bus) {
	events.SubscribeAll(bus, m,
		events.PriceVerificationRecorded{},
		events.PriceApprovalRequested{},
		events.PriceApprovalResolved{},
		events.PartsRequestFlagged{},
		events.PartsRequestApproved{},
		events.PartsRequestDenied{},
		events.PartsRequestSourced{},
		events.PartsRequestInstalled{},
		events.PartsRequestStale{},
		events.NotificationOutboxDue{},
	)

	m.log.Info("notification module registered event handlers")
}

// Handle renders the event into outbox rows, or delivers a due row.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.PriceVerificationRecorded:
		return m.handlePriceVerificationRecorded(ctx, e)
	case events.PriceApprovalRequested:
		return m.handlePriceApprovalRequested(ctx, e)
	case events.PriceApprovalResolved:
		return m.handlePriceApprovalResolved(ctx, e)
	case events.PartsRequestFlagged:
		return m.handlePartsRequestFlagged(ctx, e)
	case events.PartsRequestApproved:
		return m.handlePartsRequestApproved(ctx, e)
	case events.PartsRequestDenied:
		return m.handlePartsRequestDenied(ctx, e)
	case events.PartsRequestSourced:
		return m.handlePartsRequestSourced(ctx, e)
	case events.PartsRequestInstalled:
		return m.handlePartsRequestInstalled(ctx, e)
	case events.PartsRequestStale:
		return m.handlePartsRequestStale(ctx, e)
	case events.NotificationOutboxDue:
		return m.deliver(ctx, e.OutboxID)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// =============================================================================
// Event handlers
// =============================================================================

func (m *Module) handlePriceVerificationRecorded(ctx context.Context, e events.PriceVerificationRecorded) error {
	// Changes outside the band are announced by the approval request instead.
	if !e.AutoApproved {
		return nil
	}
	p, ok := m.participants(ctx, e.JobID, categoryPriceVerified)
	if !ok {
		return nil
	}
	msg := priceVerifiedMessage(e, nameOr(p.Customer.Name, defaultCustomerName), proName(p))
	m.enqueue(ctx, e.JobID, categoryPriceVerified, msg, p.Customer)
	return nil
}

func (m *Module) handlePriceApprovalRequested(ctx context.Context, e events.PriceApprovalRequested) error {
	p, ok := m.participants(ctx, e.JobID, categoryPriceApproval)
	if !ok {
		return nil
	}
	msg := approvalRequestedMessage(e, nameOr(p.Customer.Name, defaultCustomerName), proName(p))
	m.enqueue(ctx, e.JobID, categoryPriceApproval, msg, p.Customer)
	return nil
}

func (m *Module) handlePriceApprovalResolved(ctx context.Context, e events.PriceApprovalResolved) error {
	p, ok := m.participants(ctx, e.JobID, categoryPriceResolved)
	if !ok {
		return nil
	}
	customerMsg, proMsg := approvalResolvedMessages(e, nameOr(p.Customer.Name, defaultCustomerName), proName(p))
	m.enqueue(ctx, e.JobID, categoryPriceResolved, customerMsg, p.Customer)
	if p.Pro != nil {
		m.enqueue(ctx, e.JobID, categoryPriceResolved, proMsg, *p.Pro)
	}
	return nil
}

func (m *Module) handlePartsRequestFlagged(ctx context.Context, e events.PartsRequestFlagged) error {
	p, ok := m.participants(ctx, e.JobID, categoryPartsFlagged)
	if !ok {
		return nil
	}
	for _, payer := range payers(p) {
		m.enqueue(ctx, e.JobID, categoryPartsFlagged, partsFlaggedMessage(e, nameOr(payer.Name, defaultCustomerName)), payer)
	}
	return nil
}

func (m *Module) handlePartsRequestApproved(ctx context.Context, e events.PartsRequestApproved) error {
	p, ok := m.participants(ctx, e.JobID, categoryPartsApproved)
	if !ok || p.Pro == nil {
		return nil
	}
	m.enqueue(ctx, e.JobID, categoryPartsApproved, partsApprovedMessage(e), *p.Pro)
	return nil
}

func (m *Module) handlePartsRequestDenied(ctx context.Context, e events.PartsRequestDenied) error {
	p, ok := m.participants(ctx, e.JobID, categoryPartsDenied)
	if !ok || p.Pro == nil {
		return nil
	}
	m.enqueue(ctx, e.JobID, categoryPartsDenied, partsDeniedMessage(e), *p.Pro)
	return nil
}

func (m *Module) handlePartsRequestSourced(ctx context.Context, e events.PartsRequestSourced) error {
	p, ok := m.participants(ctx, e.JobID, categoryPartsSourced)
	if !ok {
		return nil
	}
	m.enqueue(ctx, e.JobID, categoryPartsSourced, partsSourcedMessage(e), customerAndPayers(p)...)
	return nil
}

func (m *Module) handlePartsRequestInstalled(ctx context.Context, e events.PartsRequestInstalled) error {
	p, ok := m.participants(ctx, e.JobID, categoryPartsInstalled)
	if !ok {
		return nil
	}
	m.enqueue(ctx, e.JobID, categoryPartsInstalled, partsInstalledMessage(), customerAndPayers(p)...)
	return nil
}

func (m *Module) handlePartsRequestStale(ctx context.Context, e events.PartsRequestStale) error {
	p, ok := m.participants(ctx, e.JobID, categoryPartsStale)
	if !ok {
		return nil
	}
	msg := partsStaleMessage(e)
	if e.Status == statusAwaitingSourcing {
		if p.Pro != nil {
			m.enqueue(ctx, e.JobID, categoryPartsStale, msg, *p.Pro)
		}
		return nil
	}
	m.enqueue(ctx, e.JobID, categoryPartsStale, msg, payers(p)...)
	return nil
}

func (m *Module) participants(ctx context.Context, jobID uuid.UUID, category string) (jobsdomain.Participants, bool) {
	job, err := m.jobs.GetByID(ctx, jobID)
	if err != nil {
		m.log.NotificationFailed("lookup", category, err)
		return jobsdomain.Participants{}, false
	}
	p, err := m.jobs.GetParticipants(ctx, job)
	if err != nil {
		m.log.NotificationFailed("lookup", category, err)
		return jobsdomain.Participants{}, false
	}
	return p, true
}

// payers are the business account members when there are any, else the customer.
func payers(p jobsdomain.Participants) []jobsdomain.Contact {
	if len(p.Payers) > 0 {
		return p.Payers
	}
	return []jobsdomain.Contact{p.Customer}
}

func customerAndPayers(p jobsdomain.Participants) []jobsdomain.Contact {
	return append([]jobsdomain.Contact{p.Customer}, p.Payers...)
}

func proName(p jobsdomain.Participants) string {
	if p.Pro == nil {
		return defaultProName
	}
	return nameOr(p.Pro.Name, defaultProName)
}

// =============================================================================
// Outbox
// =============================================================================

type emailSendOutboxPayload struct {
	JobID    string `json:"jobId"`
	ToEmail  string `json:"toEmail"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"bodyHtml"`
	Category string `json:"category"`
}

type whatsAppSendOutboxPayload struct {
	JobID       string `json:"jobId"`
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	Category    string `json:"category"`
}

// enqueue writes one outbox row per reachable channel of each distinct recipient.
// Failures are logged and never returned.
func (m *Module) enqueue(ctx context.Context, jobID uuid.UUID, category string, msg message, recipients ...jobsdomain.Contact) {
	if m.outbox == nil {
		return
	}

	msg.Notice.CTAURL = m.jobURL(jobID)
	if msg.Notice.CTAURL == "" {
		msg.Notice.CTALabel = ""
	}
	var bodyHTML string
	if m.email != nil {
		rendered, err := email.RenderNotice(msg.Notice)
		if err != nil {
			m.log.NotificationFailed(outbox.KindEmail, category, err)
		}
		bodyHTML = rendered
	}

	seen := make(map[uuid.UUID]struct{}, len(recipients))
	for _, r := range recipients {
		if _, dup := seen[r.UserID]; dup {
			continue
		}
		seen[r.UserID] = struct{}{}

		if bodyHTML != "" && strings.TrimSpace(r.Email) != "" {
			m.insert(ctx, outbox.KindEmail, outbox.TemplateEmailSend, category, emailSendOutboxPayload{
				JobID:    jobID.String(),
				ToEmail:  strings.TrimSpace(r.Email),
				Subject:  msg.Subject,
				BodyHTML: bodyHTML,
				Category: category,
			})
		}
		if m.whatsapp != nil && strings.TrimSpace(r.Phone) != "" {
			m.insert(ctx, outbox.KindWhatsApp, outbox.TemplateWhatsAppSend, category, whatsAppSendOutboxPayload{
				JobID:       jobID.String(),
				PhoneNumber: strings.TrimSpace(r.Phone),
				Message:     msg.Text,
				Category:    category,
			})
		}
	}
}

func (m *Module) insert(ctx context.Context, kind, template, category string, payload any) {
	if _, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Kind:     kind,
		Template: template,
		Payload:  payload,
		RunAt:    m.now().UTC(),
	}); err != nil {
		m.log.NotificationFailed(kind, category, err)
	}
}

func (m *Module) jobURL(jobID uuid.UUID) string {
	if m.cfg == nil {
		return ""
	}
	base := strings.TrimRight(m.cfg.GetAppBaseURL(), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/jobs/%s", base, jobID)
}
