// Package domain holds the parts request lifecycle.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the state of a parts request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusSourced   Status = "sourced"
	StatusInstalled Status = "installed"
)

// OpenStatuses keep a job paused. A job has at most one open request.
var OpenStatuses = []Status{StatusPending, StatusApproved, StatusSourced}

var transitions = map[Status]Status{
	StatusPending:  StatusApproved,
	StatusApproved: StatusSourced,
	StatusSourced:  StatusInstalled,
}

// CanTransition reports whether from -> to is a legal edge.
// pending -> denied is the only branch.
func CanTransition(from, to Status) bool {
	if from == StatusPending && to == StatusDenied {
		return true
	}
	return transitions[from] == to
}

// Source returns the only status a request may move to `to` from. The
// repository guards every update with it.
func Source(to Status) (Status, bool) {
	for _, from := range []Status{StatusPending, StatusApproved, StatusSourced} {
		if CanTransition(from, to) {
			return from, true
		}
	}
	return "", false
}

// ParseStatus validates a raw status filter.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusApproved, StatusDenied, StatusSourced, StatusInstalled:
		return s, nil
	}
	return "", fmt.Errorf("unknown parts request status %q", raw)
}

// SupplierSource is who buys the parts.
type SupplierSource string

const (
	SupplierPro             SupplierSource = "pro"
	SupplierPM              SupplierSource = "pm"
	SupplierPlatformPartner SupplierSource = "platform_partner"
)

// SupplierSources lists the accepted supplier values.
var SupplierSources = []string{string(SupplierPro), string(SupplierPM), string(SupplierPlatformPartner)}

// Request is a pro's request for parts on a job.
type Request struct {
	ID                 uuid.UUID
	JobID              uuid.UUID
	RequestedByProID   uuid.UUID
	BusinessAccountID  *uuid.UUID
	Description        string
	PhotoKey           *string
	EstimatedCostCents *int64
	ActualCostCents    *int64
	ReceiptKey         *string
	SupplierSource     *SupplierSource
	Status             Status
	ApprovedByID       *uuid.UUID
	DeniedByID         *uuid.UUID
	DenyReason         *string
	CreatedAt          time.Time
	ApprovedAt         *time.Time
	DeniedAt           *time.Time
	SourcedAt          *time.Time
	InstalledAt        *time.Time
	LastRemindedAt     *time.Time
	UpdatedAt          time.Time
}

// ExpenseCents prefers the actual cost over the estimate. ok is false when
// neither is known.
func ExpenseCents(actual, estimated *int64) (cents int64, ok bool) {
	switch {
	case actual != nil:
		return *actual, true
	case estimated != nil:
		return *estimated, true
	}
	return 0, false
}

// Supplier returns the supplier source or an empty string before approval.
func (r Request) Supplier() string {
	if r.SupplierSource == nil {
		return ""
	}
	return string(*r.SupplierSource)
}
