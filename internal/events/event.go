// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"jobflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Price Verification Events
// =============================================================================

// PriceVerificationRecorded is published after a pro persists a verification.
type PriceVerificationRecorded struct {
	BaseEvent
	JobID              uuid.UUID `json:"jobId"`
	VerificationID     uuid.UUID `json:"verificationId"`
	ProID              uuid.UUID `json:"proId"`
	AutoApproved       bool      `json:"autoApproved"`
	OriginalPriceCents int64     `json:"originalPriceCents"`
	VerifiedPriceCents int64     `json:"verifiedPriceCents"`
}

func (e PriceVerificationRecorded) EventName() string { return "verification.recorded" }

// PriceApprovalRequested is published when a customer must confirm a price change.
type PriceApprovalRequested struct {
	BaseEvent
	JobID                uuid.UUID `json:"jobId"`
	VerificationID       uuid.UUID `json:"verificationId"`
	CustomerID           uuid.UUID `json:"customerId"`
	ProID                uuid.UUID `json:"proId"`
	ServiceType          string    `json:"serviceType"`
	OriginalPriceCents   int64     `json:"originalPriceCents"`
	VerifiedPriceCents   int64     `json:"verifiedPriceCents"`
	PercentageDifference float64   `json:"percentageDifference"`
	ExpiresAt            time.Time `json:"expiresAt"`
	ProNotes             string    `json:"proNotes,omitempty"`
}

func (e PriceApprovalRequested) EventName() string { return "verification.approval.requested" }

// Approval outcomes carried by PriceApprovalResolved.
const (
	ApprovalOutcomeApproved = "approved"
	ApprovalOutcomeRejected = "rejected"
	ApprovalOutcomeExpired  = "expired"
)

// PriceApprovalResolved is published when a pending approval is answered or expires.
type PriceApprovalResolved struct {
	BaseEvent
	JobID              uuid.UUID `json:"jobId"`
	CustomerID         uuid.UUID `json:"customerId"`
	ProID              uuid.UUID `json:"proId"`
	Outcome            string    `json:"outcome"`
	OriginalPriceCents int64     `json:"originalPriceCents"`
	VerifiedPriceCents int64     `json:"verifiedPriceCents"`
	JobCancelled       bool      `json:"jobCancelled"`
	CustomerNotes      string    `json:"customerNotes,omitempty"`
}

func (e PriceApprovalResolved) EventName() string { return "verification.approval.resolved" }

// PriceApprovalExpiryDue is published by the scheduler when an approval deadline passes.
type PriceApprovalExpiryDue struct {
	BaseEvent
	JobID uuid.UUID `json:"jobId"`
}

func (e PriceApprovalExpiryDue) EventName() string { return "verification.approval.expiry_due" }

// =============================================================================
// Parts Procurement Events
// =============================================================================

// PartsRequestFlagged is published when a pro pauses a job for parts.
type PartsRequestFlagged struct {
	BaseEvent
	RequestID          uuid.UUID  `json:"requestId"`
	JobID              uuid.UUID  `json:"jobId"`
	ProID              uuid.UUID  `json:"proId"`
	BusinessAccountID  *uuid.UUID `json:"businessAccountId,omitempty"`
	Description        string     `json:"description"`
	EstimatedCostCents *int64     `json:"estimatedCostCents,omitempty"`
}

func (e PartsRequestFlagged) EventName() string { return "parts.request.flagged" }

// PartsRequestApproved is published when the payer approves a parts request.
type PartsRequestApproved struct {
	BaseEvent
	RequestID      uuid.UUID `json:"requestId"`
	JobID          uuid.UUID `json:"jobId"`
	ProID          uuid.UUID `json:"proId"`
	Description    string    `json:"description"`
	SupplierSource string    `json:"supplierSource"`
}

func (e PartsRequestApproved) EventName() string { return "parts.request.approved" }

// PartsRequestDenied is published when the payer denies a parts request.
type PartsRequestDenied struct {
	BaseEvent
	RequestID   uuid.UUID `json:"requestId"`
	JobID       uuid.UUID `json:"jobId"`
	ProID       uuid.UUID `json:"proId"`
	Description string    `json:"description"`
	Reason      string    `json:"reason,omitempty"`
}

func (e PartsRequestDenied) EventName() string { return "parts.request.denied" }

// PartsRequestSourced is published when the pro has bought the parts.
type PartsRequestSourced struct {
	BaseEvent
	RequestID         uuid.UUID  `json:"requestId"`
	JobID             uuid.UUID  `json:"jobId"`
	ProID             uuid.UUID  `json:"proId"`
	BusinessAccountID *uuid.UUID `json:"businessAccountId,omitempty"`
	Description       string     `json:"description"`
	ActualCostCents   int64      `json:"actualCostCents"`
}

func (e PartsRequestSourced) EventName() string { return "parts.request.sourced" }

// PartsRequestInstalled is published when the parts are in and the job has resumed.
type PartsRequestInstalled struct {
	BaseEvent
	RequestID          uuid.UUID `json:"requestId"`
	JobID              uuid.UUID `json:"jobId"`
	ProID              uuid.UUID `json:"proId"`
	Description        string    `json:"description"`
	EstimatedCostCents *int64    `json:"estimatedCostCents,omitempty"`
	ActualCostCents    *int64    `json:"actualCostCents,omitempty"`
	SupplierSource     string    `json:"supplierSource"`
}

func (e PartsRequestInstalled) EventName() string { return "parts.request.installed" }

// PartsRequestStale is published by the reminder sweep for requests waiting too long.
type PartsRequestStale struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	JobID     uuid.UUID `json:"jobId"`
	Status    string    `json:"status"`
}

func (e PartsRequestStale) EventName() string { return "parts.request.stale" }

// =============================================================================
// Notification Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler when an outbox row is ready to deliver.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
