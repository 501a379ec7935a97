package transport

import (
	"time"

	"github.com/google/uuid"
)

// FlagPartsRequest is a pro's report that the job needs parts.
type FlagPartsRequest struct {
	Description        string  `json:"description" validate:"required,min=3,max=2000"`
	EstimatedCostCents *int64  `json:"estimatedCostCents,omitempty" validate:"omitempty,gte=0"`
	PhotoKey           *string `json:"photoKey,omitempty" validate:"omitempty,max=512"`
}

// ApprovePartsRequest approves a request and names who sources the parts.
type ApprovePartsRequest struct {
	SupplierSource string `json:"supplierSource" validate:"required,supplier_source"`
}

// DenyPartsRequest denies a request.
type DenyPartsRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

// MarkSourcedRequest records the parts as bought.
type MarkSourcedRequest struct {
	ActualCostCents *int64  `json:"actualCostCents" validate:"required,gte=0"`
	ReceiptKey      *string `json:"receiptKey,omitempty" validate:"omitempty,max=512"`
}

// ListBusinessRequest filters GET /business/parts-requests.
type ListBusinessRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=pending approved denied sourced installed"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// PartsRequestResponse is a parts request as returned by the API.
type PartsRequestResponse struct {
	ID                 uuid.UUID  `json:"id"`
	JobID              uuid.UUID  `json:"jobId"`
	RequestedByProID   uuid.UUID  `json:"requestedByProId"`
	BusinessAccountID  *uuid.UUID `json:"businessAccountId,omitempty"`
	Description        string     `json:"description"`
	PhotoKey           *string    `json:"photoKey,omitempty"`
	EstimatedCostCents *int64     `json:"estimatedCostCents,omitempty"`
	ActualCostCents    *int64     `json:"actualCostCents,omitempty"`
	ReceiptKey         *string    `json:"receiptKey,omitempty"`
	SupplierSource     *string    `json:"supplierSource,omitempty"`
	Status             string     `json:"status"`
	DenyReason         *string    `json:"denyReason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	DeniedAt           *time.Time `json:"deniedAt,omitempty"`
	SourcedAt          *time.Time `json:"sourcedAt,omitempty"`
	InstalledAt        *time.Time `json:"installedAt,omitempty"`
}

// PartsRequestListResponse wraps a list of parts requests.
type PartsRequestListResponse struct {
	Items []PartsRequestResponse `json:"items"`
}

// SweepResponse reports how many rows an on-demand sweep processed.
type SweepResponse struct {
	Processed int `json:"processed"`
}
