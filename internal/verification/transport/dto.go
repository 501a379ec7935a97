package transport

import (
	"encoding/json"
	"time"

	"jobflow_backend/internal/pricing"

	"github.com/google/uuid"
)

// EvidenceRequest is what a pro submits from site. Either DetectedParams or
// MediaKeys must be present; with media the scope analyzer fills the params.
type EvidenceRequest struct {
	Method         string         `json:"method" validate:"required,oneof=photo video"`
	DetectedParams map[string]any `json:"detectedParams,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	MediaKeys      []string       `json:"mediaKeys,omitempty" validate:"omitempty,max=10,dive,required,max=512"`
}

// VerifyPriceRequest previews a verification without persisting it.
type VerifyPriceRequest struct {
	JobID uuid.UUID `json:"jobId" validate:"required"`
	EvidenceRequest
}

// RecordVerificationRequest persists a verification for the job in the path.
type RecordVerificationRequest struct {
	EvidenceRequest
}

// RequestApprovalRequest asks the customer to accept a price change.
type RequestApprovalRequest struct {
	JobID          uuid.UUID `json:"jobId" validate:"required"`
	VerificationID uuid.UUID `json:"verificationId" validate:"required"`
	ProNotes       *string   `json:"proNotes,omitempty" validate:"omitempty,max=2000"`
}

// ApprovePriceChangeRequest is the customer's answer.
type ApprovePriceChangeRequest struct {
	Approved      *bool   `json:"approved" validate:"required"`
	CustomerNotes *string `json:"customerNotes,omitempty" validate:"omitempty,max=2000"`
}

// VerificationResponse is a persisted verification.
type VerificationResponse struct {
	ID                   uuid.UUID       `json:"id"`
	JobID                uuid.UUID       `json:"jobId"`
	Method               string          `json:"method"`
	DetectedParams       json.RawMessage `json:"detectedParams"`
	Confidence           float64         `json:"confidence"`
	VerifiedPriceCents   int64           `json:"verifiedPriceCents"`
	OriginalPriceCents   int64           `json:"originalPriceCents"`
	PriceDifferenceCents int64           `json:"priceDifferenceCents"`
	PercentageDifference float64         `json:"percentageDifference"`
	AutoApproved         bool            `json:"autoApproved"`
	LowConfidence        bool            `json:"lowConfidence"`
	Reason               string          `json:"reason"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// PreviewResponse is the engine verdict for POST /jobs/verify-price.
type PreviewResponse struct {
	pricing.Result
	AnalysisReasoning string `json:"analysisReasoning,omitempty"`
}

// ApprovalStateResponse summarises the approval cycle of a job.
type ApprovalStateResponse struct {
	JobID                           uuid.UUID             `json:"jobId"`
	Status                          string                `json:"status"`
	OriginalPriceCents              int64                 `json:"originalPriceCents"`
	VerifiedPriceCents              *int64                `json:"verifiedPriceCents,omitempty"`
	PriceAdjustmentCents            *int64                `json:"priceAdjustmentCents,omitempty"`
	PriceApprovalPending            bool                  `json:"priceApprovalPending"`
	CustomerApprovedPriceAdjustment *bool                 `json:"customerApprovedPriceAdjustment"`
	PriceApprovalRequestedAt        *time.Time            `json:"priceApprovalRequestedAt,omitempty"`
	PriceApprovalRespondedAt        *time.Time            `json:"priceApprovalRespondedAt,omitempty"`
	PriceApprovalExpiresAt          *time.Time            `json:"priceApprovalExpiresAt,omitempty"`
	LatestVerification              *VerificationResponse `json:"latestVerification,omitempty"`
}

// SweepResponse reports how many rows an on-demand sweep processed.
type SweepResponse struct {
	Processed int `json:"processed"`
}
