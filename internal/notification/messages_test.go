package notification

import (
	"strings"
	"testing"
	"time"

	"jobflow_backend/internal/events"

	"github.com/google/uuid"
)

func TestApprovalRequestedMessage(t *testing.T) {
	requested := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	e := events.PriceApprovalRequested{
		BaseEvent:            events.BaseEvent{Timestamp: requested},
		JobID:                uuid.New(),
		OriginalPriceCents:   20000,
		VerifiedPriceCents:   24000,
		PercentageDifference: 20,
		ExpiresAt:            requested.Add(30 * time.Minute),
		ProNotes:             "two extra bathrooms",
	}
	msg := approvalRequestedMessage(e, "Dana", "Sam")
	for _, want := range []string{"larger than estimated", "$240.00", "was $200.00", "+$40.00", "20.0% increase", "within 30 minutes"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("expected %q in %q", want, msg.Text)
		}
	}
	if len(msg.Notice.Paragraphs) != 2 {
		t.Fatalf("expected pro note paragraph")
	}

	e.VerifiedPriceCents = 15000
	e.PercentageDifference = 25
	msg = approvalRequestedMessage(e, "Dana", "Sam")
	if !strings.Contains(msg.Text, "smaller than estimated") || !strings.Contains(msg.Text, "-$50.00") || !strings.Contains(msg.Text, "25.0% decrease") {
		t.Fatalf("unexpected decrease wording %q", msg.Text)
	}
}

func TestPriceVerifiedMessage(t *testing.T) {
	tests := []struct {
		name     string
		verified int64
		want     string
	}{
		{"decrease", 18500, "Savings of $15.00 passed to you!"},
		{"increase", 21500, "(was $200.00, +$15.00, 7.5% difference - within our 10% accuracy guarantee)"},
		{"unchanged", 20000, "Your price of $200.00 is confirmed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := priceVerifiedMessage(events.PriceVerificationRecorded{OriginalPriceCents: 20000, VerifiedPriceCents: tt.verified}, "Dana", "Sam")
			if !strings.Contains(msg.Text, tt.want) {
				t.Fatalf("expected %q in %q", tt.want, msg.Text)
			}
		})
	}
}

func TestExpiredWording(t *testing.T) {
	customerMsg, proMsg := approvalResolvedMessages(events.PriceApprovalResolved{
		Outcome:            events.ApprovalOutcomeExpired,
		OriginalPriceCents: 20000,
		VerifiedPriceCents: 26000,
		JobCancelled:       true,
	}, "Dana", "Sam")
	if !strings.Contains(customerMsg.Text, "reschedule") || !strings.Contains(proMsg.Text, "released from this job") {
		t.Fatalf("unexpected expiry wording %q / %q", customerMsg.Text, proMsg.Text)
	}
}

func TestPartsMessages(t *testing.T) {
	estimate := int64(4500)
	flagged := partsFlaggedMessage(events.PartsRequestFlagged{Description: "valve", EstimatedCostCents: &estimate}, "Lee")
	if flagged.Text != `Your Pro needs parts/materials ($45.00) - "valve". Please approve in the app.` {
		t.Fatalf("unexpected flagged text %q", flagged.Text)
	}
	approved := partsApprovedMessage(events.PartsRequestApproved{SupplierSource: "pm"})
	if !strings.Contains(approved.Text, "Supplied by property manager/customer") {
		t.Fatalf("unexpected approved text %q", approved.Text)
	}
	denied := partsDeniedMessage(events.PartsRequestDenied{Description: "valve", Reason: "tenant has one"})
	if !strings.HasSuffix(denied.Text, "Reason: tenant has one") {
		t.Fatalf("unexpected denied text %q", denied.Text)
	}
	sourced := partsSourcedMessage(events.PartsRequestSourced{ActualCostCents: 5230})
	if sourced.Text != "Parts sourced ($52.30). Your Pro will resume work shortly." {
		t.Fatalf("unexpected sourced text %q", sourced.Text)
	}
}

func TestFormatUSD(t *testing.T) {
	tests := map[int64]string{0: "$0.00", 5: "$0.05", 22000: "$220.00", -1550: "-$15.50"}
	for cents, want := range tests {
		if got := formatUSD(cents); got != want {
			t.Fatalf("formatUSD(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestApprovalWindow(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Minute, "30 minutes"},
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{20 * time.Second, "1 minute"},
		{0, "the approval window"},
	}
	for _, tt := range tests {
		if got := approvalWindow(tt.d); got != tt.want {
			t.Fatalf("approvalWindow(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
