package types

import (
	"time"

	"github.com/google/uuid"
)

// SyncOutcome is the overall result of one sync run.
type SyncOutcome string

// Sync outcomes
const (
	OutcomeCompleted       SyncOutcome = "completed"
	OutcomeAuthError       SyncOutcome = "auth_error"
	OutcomeConnectionError SyncOutcome = "connection_error"
	OutcomeCancelled       SyncOutcome = "cancelled"
)

// SyncSummary aggregates the counts of one sync run for one user.
//
// Fetched = Classified + SkippedDuplicates + Pending, where Pending counts
// emails left unprocessed when a run stops early. Updated <= Matched <= Classified.
type SyncSummary struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"user_id"`
	LookbackDays      int         `json:"lookback_days"`
	StartedAt         time.Time   `json:"started_at"`
	FinishedAt        time.Time   `json:"finished_at"`
	Outcome           SyncOutcome `json:"outcome"`
	Fetched           int         `json:"fetched"`
	SkippedDuplicates int         `json:"skipped_duplicates"`
	Classified        int         `json:"classified"`
	Matched           int         `json:"matched"`
	Updated           int         `json:"updated"`
	NeedsReview       int         `json:"needs_review"`
	Errors            int         `json:"errors"`
	Pending           int         `json:"pending"`
	ErrorMessage      string      `json:"error_message,omitempty"`
}

// Succeeded reports whether the run reached the end of the fetched batch.
func (s *SyncSummary) Succeeded() bool {
	return s.Outcome == OutcomeCompleted
}

// MatchOutcome is the result of matching one event and applying its transition.
type MatchOutcome struct {
	Matched       bool       `json:"matched"`
	Updated       bool       `json:"updated"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	Score         float64    `json:"score,omitempty"`
	FromStatus    Status     `json:"from_status,omitempty"`
	ToStatus      Status     `json:"to_status,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// EmailSummary holds per-user email processing statistics.
type EmailSummary struct {
	UserID         uuid.UUID     `json:"user_id"`
	TotalProcessed int           `json:"total_processed"`
	NeedsReview    int           `json:"needs_review"`
	StatusUpdates  int           `json:"status_updates"`
	ByLabel        map[Label]int `json:"by_label"`
	LastSyncAt     *time.Time    `json:"last_sync_at,omitempty"`
	Connected      bool          `json:"connected"`
}
