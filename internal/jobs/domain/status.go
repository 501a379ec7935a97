// Package domain holds the job lifecycle: statuses and the legal transitions between them.
package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusCreated     Status = "created"
	StatusMatched     Status = "matched"
	StatusAccepted    Status = "accepted"
	StatusEnRoute     Status = "en_route"
	StatusInProgress  Status = "in_progress"
	StatusPausedParts Status = "paused_parts"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusDisputed    Status = "disputed"
)

var transitions = map[Status][]Status{
	StatusCreated:     {StatusMatched},
	StatusMatched:     {StatusAccepted},
	StatusAccepted:    {StatusEnRoute, StatusCancelled},
	StatusEnRoute:     {StatusInProgress, StatusCancelled},
	StatusInProgress:  {StatusCompleted, StatusPausedParts, StatusCancelled, StatusDisputed},
	StatusPausedParts: {StatusInProgress},
}

// CancellableStatuses are the states a job can be cancelled from.
var CancellableStatuses = []Status{StatusAccepted, StatusEnRoute, StatusInProgress}

// OnSiteStatuses are the states in which a pro may verify a price or flag parts.
var OnSiteStatuses = []Status{StatusAccepted, StatusEnRoute, StatusInProgress}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	switch s {
	case StatusCreated, StatusMatched, StatusAccepted, StatusEnRoute, StatusInProgress,
		StatusPausedParts, StatusCompleted, StatusCancelled, StatusDisputed:
		return s, nil
	}
	return "", fmt.Errorf("unknown job status %q", raw)
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether the job is between acceptance and completion and not paused.
func (s Status) IsActive() bool {
	return s.In(CancellableStatuses...)
}

// In reports whether s is one of the given statuses.
func (s Status) In(statuses ...Status) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Path returns the shortest chain of legal transitions leading from -> to,
// excluding from itself. ok is false when to is unreachable.
func Path(from, to Status) (path []Status, ok bool) {
	if from == to {
		return nil, true
	}
	prev := map[Status]Status{from: ""}
	queue := []Status{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range transitions[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == to {
				for step := to; step != from; step = prev[step] {
					path = append([]Status{step}, path...)
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// Strings converts statuses for SQL array parameters.
func Strings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
