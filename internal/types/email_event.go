// Package types provides type definitions for structured data used throughout the job-tracker system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// RawEmail is a message as delivered by a mail provider, before classification.
type RawEmail struct {
	MessageID   string    `json:"message_id"`
	ThreadID    string    `json:"thread_id,omitempty"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Classification is the typed result of classifying one email.
type Classification struct {
	Label      Label                `json:"label"`
	Confidence float64              `json:"confidence"`
	Company    string               `json:"company,omitempty"`
	JobTitle   string               `json:"job_title,omitempty"`
	Location   string               `json:"location,omitempty"`
	Sentiment  Sentiment            `json:"sentiment"`
	Source     ClassificationSource `json:"source"`
	Reason     string               `json:"reason,omitempty"`
	// Failed marks a fallback caused by a classifier error, as opposed to an
	// email that was simply undecidable.
	Failed bool `json:"failed,omitempty"`
}

// EmailEvent is one ingested and classified email.
type EmailEvent struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	MessageID   string    `json:"message_id"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`

	Classification

	NeedsReview          bool       `json:"needs_review"`
	UserReviewed         bool       `json:"user_reviewed"`
	MatchedApplicationID *uuid.UUID `json:"matched_application_id,omitempty"`
	MatchScore           *float64   `json:"match_score,omitempty"`
	StatusUpdated        bool       `json:"status_updated"`
	ProcessedAt          time.Time  `json:"processed_at"`
	CreatedAt            time.Time  `json:"created_at,omitempty"`
}

// NewEmailEvent builds an unpersisted event from a raw email and its classification.
// The review flag follows the classification alone; matching and updating may raise it later.
func NewEmailEvent(userID uuid.UUID, raw RawEmail, c Classification, reviewThreshold float64, now time.Time) *EmailEvent {
	return &EmailEvent{
		ID:             uuid.New(),
		UserID:         userID,
		MessageID:      raw.MessageID,
		SenderEmail:    raw.SenderEmail,
		SenderName:     raw.SenderName,
		Subject:        raw.Subject,
		Body:           raw.Body,
		ReceivedAt:     raw.ReceivedAt,
		Classification: c,
		NeedsReview:    NeedsReview(c, reviewThreshold),
		ProcessedAt:    now,
	}
}

// NeedsReview reports whether a classification alone warrants human review.
func NeedsReview(c Classification, threshold float64) bool {
	return c.Label == LabelUnknown || c.Confidence < threshold
}

// Raw reconstructs the provider view of a stored event.
func (e *EmailEvent) Raw() RawEmail {
	return RawEmail{
		MessageID:   e.MessageID,
		SenderEmail: e.SenderEmail,
		SenderName:  e.SenderName,
		Subject:     e.Subject,
		Body:        e.Body,
		ReceivedAt:  e.ReceivedAt,
	}
}

// ClampConfidence bounds a confidence value to [0,1].
func ClampConfidence(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
