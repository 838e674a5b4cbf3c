package types

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a job application.
type Status string

// Application statuses
const (
	StatusInterested   Status = "interested"
	StatusApplied      Status = "applied"
	StatusInterviewing Status = "interviewing"
	StatusRejected     Status = "rejected"
	StatusOffer        Status = "offer"
	StatusHired        Status = "hired"
)

// AllStatuses lists every status in a stable order.
var AllStatuses = []Status{
	StatusInterested,
	StatusApplied,
	StatusInterviewing,
	StatusRejected,
	StatusOffer,
	StatusHired,
}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range AllStatuses {
		if st == normalized {
			return st, nil
		}
	}
	// "interviewed" is what older records use
	if normalized == "interviewed" {
		return StatusInterviewing, nil
	}
	return "", fmt.Errorf("unknown application status: %q", s)
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automatic transition may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusHired
}

// Rank is the position of the status on the forward path of an application.
// Rejected sits outside the path and ranks -1.
func (s Status) Rank() int {
	switch s {
	case StatusInterested:
		return 0
	case StatusApplied:
		return 1
	case StatusInterviewing:
		return 2
	case StatusOffer:
		return 3
	case StatusHired:
		return 4
	default:
		return -1
	}
}
