package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveVerification(true)
	r.ObserveApprovalResponse("approved")
	r.ObservePartsTransition("installed")
	r.ObserveGuardConflict("respond_approval")
	r.ObserveOutboxDelivery("email", false)
	r.ObserveExpenseLogged()
}

func TestObserveVerificationLabelsDecision(t *testing.T) {
	r := NewRegistry()
	r.ObserveVerification(true)
	r.ObserveVerification(false)
	r.ObserveVerification(false)

	if got := testutil.ToFloat64(r.Verifications.WithLabelValues("approval_required")); got != 2 {
		t.Fatalf("expected 2 approval_required, got %v", got)
	}
	if got := testutil.ToFloat64(r.Verifications.WithLabelValues("auto_approved")); got != 1 {
		t.Fatalf("expected 1 auto_approved, got %v", got)
	}
}
