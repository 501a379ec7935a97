package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is a service request as the reconciliation workflow sees it.
type Job struct {
	ID                              uuid.UUID
	CustomerID                      uuid.UUID
	AssignedProID                   *uuid.UUID
	PropertyID                      *uuid.UUID
	BusinessAccountID               *uuid.UUID
	ServiceType                     string
	Status                          Status
	OriginalPriceCents              int64
	QuoteInputs                     json.RawMessage
	VerifiedPriceCents              *int64
	PriceAdjustmentCents            *int64
	PriceApprovalPending            bool
	CustomerApprovedPriceAdjustment *bool
	PriceApprovalRequestedAt        *time.Time
	PriceApprovalRespondedAt        *time.Time
	PriceApprovalExpiresAt          *time.Time
	ProNotes                        *string
	CustomerNotes                   *string
	CancellationReason              *string
	UpdatedAt                       time.Time
}

// IsAssignedPro reports whether userID is the pro assigned to the job.
func (j Job) IsAssignedPro(userID uuid.UUID) bool {
	return j.AssignedProID != nil && *j.AssignedProID == userID
}

// IsCustomer reports whether userID booked the job.
func (j Job) IsCustomer(userID uuid.UUID) bool {
	return j.CustomerID == userID
}

// EffectivePriceCents is the verified price when one is authoritative, else the quote.
// A verified price awaiting approval, or one the customer rejected, is not authoritative.
func (j Job) EffectivePriceCents() int64 {
	if j.VerifiedPriceCents == nil || j.PriceApprovalPending {
		return j.OriginalPriceCents
	}
	if j.CustomerApprovedPriceAdjustment != nil && !*j.CustomerApprovedPriceAdjustment {
		return j.OriginalPriceCents
	}
	return *j.VerifiedPriceCents
}

// Contact is how a participant can be reached.
type Contact struct {
	UserID uuid.UUID
	Name   string
	Email  string
	Phone  string
}

// Participants groups the people involved in a job.
type Participants struct {
	Customer Contact
	Pro      *Contact
	// Payers are business account members when the job's property belongs to an account.
	Payers []Contact
}

// CancellationReasons recorded on service requests.
const (
	CancelReasonPriceRejected = "price_adjustment_rejected"
	CancelReasonPriceExpired  = "price_approval_expired"
)
