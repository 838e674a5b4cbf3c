package types

import (
	"time"

	"github.com/google/uuid"
)

// StatusChangeSource identifies what triggered a status change.
type StatusChangeSource string

// Status change sources
const (
	ChangeSourceEmail  StatusChangeSource = "email"
	ChangeSourceManual StatusChangeSource = "manual"
)

// StatusChange is one entry of an application's append-only status history.
type StatusChange struct {
	From         Status             `json:"from"`
	To           Status             `json:"to"`
	ChangedAt    time.Time          `json:"changed_at"`
	Source       StatusChangeSource `json:"source"`
	EmailEventID *uuid.UUID         `json:"email_event_id,omitempty"`
	Confidence   float64            `json:"confidence,omitempty"`
}

// JobApplication is a user's application to a job listing.
type JobApplication struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	JobListingRef string         `json:"job_listing_ref,omitempty"`
	Company       string         `json:"company"`
	Title         string         `json:"title"`
	Location      string         `json:"location,omitempty"`
	Status        Status         `json:"status"`
	History       []StatusChange `json:"status_history"`
	AppliedAt     time.Time      `json:"applied_at"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// IsOpen reports whether the application can still receive automatic transitions.
func (a *JobApplication) IsOpen() bool {
	return !a.Status.IsTerminal()
}
