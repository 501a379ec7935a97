package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobResponse is the job snapshot returned to participants.
type JobResponse struct {
	ID                              uuid.UUID       `json:"id"`
	CustomerID                      uuid.UUID       `json:"customerId"`
	AssignedProID                   *uuid.UUID      `json:"assignedProId,omitempty"`
	BusinessAccountID               *uuid.UUID      `json:"businessAccountId,omitempty"`
	ServiceType                     string          `json:"serviceType"`
	Status                          string          `json:"status"`
	OriginalPriceCents              int64           `json:"originalPriceCents"`
	EffectivePriceCents             int64           `json:"effectivePriceCents"`
	QuoteInputs                     json.RawMessage `json:"quoteInputs,omitempty"`
	VerifiedPriceCents              *int64          `json:"verifiedPriceCents,omitempty"`
	PriceAdjustmentCents            *int64          `json:"priceAdjustmentCents,omitempty"`
	PriceApprovalPending            bool            `json:"priceApprovalPending"`
	CustomerApprovedPriceAdjustment *bool           `json:"customerApprovedPriceAdjustment"`
	PriceApprovalRequestedAt        *time.Time      `json:"priceApprovalRequestedAt,omitempty"`
	PriceApprovalRespondedAt        *time.Time      `json:"priceApprovalRespondedAt,omitempty"`
	PriceApprovalExpiresAt          *time.Time      `json:"priceApprovalExpiresAt,omitempty"`
	ProNotes                        *string         `json:"proNotes,omitempty"`
	CustomerNotes                   *string         `json:"customerNotes,omitempty"`
	CancellationReason              *string         `json:"cancellationReason,omitempty"`
	UpdatedAt                       time.Time       `json:"updatedAt"`
}
