package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusDenied, true},
		{StatusApproved, StatusSourced, true},
		{StatusSourced, StatusInstalled, true},
		{StatusPending, StatusSourced, false},
		{StatusApproved, StatusDenied, false},
		{StatusDenied, StatusApproved, false},
		{StatusInstalled, StatusPending, false},
		{StatusSourced, StatusApproved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSource(t *testing.T) {
	tests := []struct {
		to   Status
		from Status
		ok   bool
	}{
		{StatusApproved, StatusPending, true},
		{StatusDenied, StatusPending, true},
		{StatusSourced, StatusApproved, true},
		{StatusInstalled, StatusSourced, true},
		{StatusPending, "", false},
	}
	for _, tt := range tests {
		from, ok := Source(tt.to)
		if from != tt.from || ok != tt.ok {
			t.Fatalf("Source(%s) = %s, %v; want %s, %v", tt.to, from, ok, tt.from, tt.ok)
		}
		if ok && !CanTransition(from, tt.to) {
			t.Fatalf("Source(%s) returned an illegal edge from %s", tt.to, from)
		}
	}
}

func TestExpenseCents(t *testing.T) {
	est, actual := int64(4500), int64(5230)

	if _, ok := ExpenseCents(nil, nil); ok {
		t.Fatal("expected no expense without costs")
	}
	if got, _ := ExpenseCents(nil, &est); got != est {
		t.Fatalf("expected estimate, got %d", got)
	}
	if got, _ := ExpenseCents(&actual, &est); got != actual {
		t.Fatalf("expected actual cost, got %d", got)
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Sourced "); err != nil || s != StatusSourced {
		t.Fatalf("unexpected %q %v", s, err)
	}
	if _, err := ParseStatus("lost"); err == nil {
		t.Fatal("expected error")
	}
}
