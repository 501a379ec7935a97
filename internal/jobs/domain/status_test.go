package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusMatched, true},
		{StatusMatched, StatusAccepted, true},
		{StatusAccepted, StatusEnRoute, true},
		{StatusEnRoute, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusPausedParts, true},
		{StatusPausedParts, StatusInProgress, true},
		{StatusInProgress, StatusDisputed, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusEnRoute, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusPausedParts, StatusCancelled, false},
		{StatusCreated, StatusInProgress, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusAccepted, StatusPausedParts, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
		if len(transitions[s]) != 0 {
			t.Fatalf("expected no transitions from %s", s)
		}
	}
}

func TestPath(t *testing.T) {
	path, ok := Path(StatusAccepted, StatusPausedParts)
	if !ok {
		t.Fatal("expected paused_parts reachable from accepted")
	}
	want := []Status{StatusEnRoute, StatusInProgress, StatusPausedParts}
	if len(path) != len(want) {
		t.Fatalf("expected %v, got %v", want, path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, path)
		}
	}

	if _, ok := Path(StatusCompleted, StatusInProgress); ok {
		t.Fatal("expected no path out of a terminal status")
	}
	if path, ok := Path(StatusInProgress, StatusInProgress); !ok || len(path) != 0 {
		t.Fatal("expected empty path to self")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" paused_parts "); err != nil || s != StatusPausedParts {
		t.Fatalf("unexpected parse result %q %v", s, err)
	}
	if _, err := ParseStatus("on_hold"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
