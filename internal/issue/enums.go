// Package issue defines the issue, comment, viewpoint and group records
// shared by the BCF codec and the store.
package issue

import "strings"

// Status is the workflow state of an issue.
//
// Values outside the known set are kept verbatim: BCF producers are not bound
// to this enumeration, and a round trip must not rewrite what they sent.
type Status string

const (
	StatusOpen        Status = "open"
	StatusInProgress  Status = "in progress"
	StatusForApproval Status = "for approval"
	StatusClosed      Status = "closed"
)

// ValidStatuses returns all known status values.
func ValidStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusForApproval, StatusClosed}
}

// ParseStatus case-folds raw against the known statuses. Empty input yields
// StatusOpen; unknown input is returned unmodified.
func ParseStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StatusOpen
	}
	for _, s := range ValidStatuses() {
		if strings.EqualFold(trimmed, string(s)) {
			return s
		}
	}
	return Status(raw)
}

// Known reports whether s is one of the enumerated statuses.
func (s Status) Known() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusForApproval, StatusClosed:
		return true
	default:
		return false
	}
}

// Priority is the urgency of an issue.
// Unknown values pass through like Status.
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities returns all known priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityNone, PriorityLow, PriorityMedium, PriorityHigh}
}

// ParsePriority case-folds raw against the known priorities. Empty input
// yields PriorityNone; unknown input is returned unmodified.
func ParsePriority(raw string) Priority {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PriorityNone
	}
	for _, p := range ValidPriorities() {
		if strings.EqualFold(trimmed, string(p)) {
			return p
		}
	}
	return Priority(raw)
}

// Known reports whether p is one of the enumerated priorities.
func (p Priority) Known() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// ViewpointType is the camera projection of a viewpoint.
type ViewpointType string

const (
	ViewpointPerspective  ViewpointType = "perspective"
	ViewpointOrthographic ViewpointType = "orthographic"
)
