// Package ledger books job expenses for accounting once installed parts are
// final. Entries land in Postgres and, when configured, on a Kafka topic.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobflow_backend/internal/events"
	partsdomain "jobflow_backend/internal/parts/domain"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	notesProSourced = "Pro-sourced, reimbursement required"
	notesPMSourced  = "PM/customer supplied"

	supplierPro = "pro"
)

// ErrNoAmount is returned for installed parts that carry neither an actual nor an estimated cost.
var ErrNoAmount = errors.New("parts request has no cost to book")

// Expense is one accounting ledger line.
type Expense struct {
	ID             uuid.UUID `json:"id"`
	JobID          uuid.UUID `json:"jobId"`
	PartsRequestID uuid.UUID `json:"partsRequestId"`
	Description    string    `json:"description"`
	AmountCents    int64     `json:"amountCents"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists expenses. Insert reports false when the parts request was already booked.
type Store interface {
	Insert(ctx context.Context, e Expense) (bool, error)
}

// Publisher forwards booked expenses to downstream accounting.
type Publisher interface {
	Publish(ctx context.Context, e Expense) error
}

// Service books expenses from parts lifecycle events.
type Service struct {
	store     Store
	publisher Publisher
	metrics   *metrics.Registry
	log       *logger.Logger
	now       func() time.Time
}

// New creates a ledger service. publisher may be nil.
func New(store Store, publisher Publisher, reg *metrics.Registry, log *logger.Logger) *Service {
	if log == nil {
		log = logger.New("production")
	}
	return &Service{
		store:     store,
		publisher: publisher,
		metrics:   reg,
		log:       log,
		now:       time.Now,
	}
}

// RegisterHandlers subscribes the ledger to installed parts.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.PartsRequestInstalled{}.EventName(), s)
}

// Handle routes events to the appropriate handler method.
func (s *Service) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.PartsRequestInstalled:
		_, err := s.LogInstalledParts(ctx, e)
		return err
	default:
		return nil
	}
}

// LogInstalledParts books the cost of installed parts against the job.
// The actual cost wins over the estimate. Re-delivered events are ignored.
func (s *Service) LogInstalledParts(ctx context.Context, e events.PartsRequestInstalled) (Expense, error) {
	amount, ok := partsdomain.ExpenseCents(e.ActualCostCents, e.EstimatedCostCents)
	if !ok {
		return Expense{}, fmt.Errorf("parts request %s: %w", e.RequestID, ErrNoAmount)
	}

	expense := Expense{
		ID:             uuid.New(),
		JobID:          e.JobID,
		PartsRequestID: e.RequestID,
		Description:    fmt.Sprintf("Parts: %s", strings.TrimSpace(e.Description)),
		AmountCents:    amount,
		Notes:          notesFor(e.SupplierSource),
		CreatedAt:      s.now(),
	}

	inserted, err := s.store.Insert(ctx, expense)
	if err != nil {
		return Expense{}, err
	}
	if !inserted {
		return expense, nil
	}
	s.metrics.ObserveExpenseLogged()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, expense); err != nil {
			// The Postgres row is the record of truth; downstream can replay from it.
			s.log.Warn("ledger publish failed",
				slog.String("expense_id", expense.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return expense, nil
}

func notesFor(supplier string) string {
	if supplier == supplierPro {
		return notesProSourced
	}
	return notesPMSourced
}
