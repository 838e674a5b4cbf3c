package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ClassifyRequest is an email submitted for classification only.
type ClassifyRequest struct {
	MessageID   string     `json:"message_id,omitempty"`
	SenderEmail string     `json:"sender_email,omitempty" validate:"omitempty,email"`
	SenderName  string     `json:"sender_name,omitempty"`
	Subject     string     `json:"subject" validate:"required_without=Body"`
	Body        string     `json:"body"`
	ReceivedAt  *time.Time `json:"received_at,omitempty"`
}

// Validate validates the ClassifyRequest using the validator.
func (r *ClassifyRequest) Validate() error {
	return validate.Struct(r)
}

// RawEmail converts the request, defaulting the receipt time to now.
func (r *ClassifyRequest) RawEmail(now time.Time) RawEmail {
	received := now
	if r.ReceivedAt != nil {
		received = *r.ReceivedAt
	}
	return RawEmail{
		MessageID:   r.MessageID,
		SenderEmail: r.SenderEmail,
		SenderName:  r.SenderName,
		Subject:     r.Subject,
		Body:        r.Body,
		ReceivedAt:  received,
	}
}

// SyncRequest starts a mailbox sync.
type SyncRequest struct {
	LookbackDays int `json:"lookback_days,omitempty" validate:"omitempty,min=1,max=365"`
}

// Validate validates the SyncRequest using the validator.
func (r *SyncRequest) Validate() error {
	return validate.Struct(r)
}

// CreateApplicationRequest registers an application to track.
type CreateApplicationRequest struct {
	Company       string     `json:"company" validate:"required_without=Title"`
	Title         string     `json:"title"`
	Location      string     `json:"location,omitempty"`
	JobListingRef string     `json:"job_listing_ref,omitempty"`
	Status        string     `json:"status,omitempty" validate:"omitempty,oneof=interested applied interviewing rejected offer hired"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
}

// Validate validates the CreateApplicationRequest using the validator.
func (r *CreateApplicationRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateStatusRequest is a manual status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=interested applied interviewing rejected offer hired"`
}

// Validate validates the UpdateStatusRequest using the validator.
func (r *UpdateStatusRequest) Validate() error {
	return validate.Struct(r)
}

// ReviewRequest marks an event reviewed, optionally correcting its label.
type ReviewRequest struct {
	Label *string `json:"label,omitempty" validate:"omitempty,oneof=confirmation rejection interview offer update unknown not_job_related"`
}

// Validate validates the ReviewRequest using the validator.
func (r *ReviewRequest) Validate() error {
	return validate.Struct(r)
}

// ConnectionRequest creates or replaces a user's mailbox connection.
type ConnectionRequest struct {
	Provider          string `json:"provider" validate:"required,oneof=gmail imap"`
	AccountEmail      string `json:"account_email,omitempty" validate:"omitempty,email"`
	IMAPHost          string `json:"imap_host,omitempty" validate:"required_if=Provider imap"`
	IMAPPort          int    `json:"imap_port,omitempty" validate:"omitempty,min=1,max=65535"`
	IMAPUsername      string `json:"imap_username,omitempty" validate:"required_if=Provider imap"`
	Password          string `json:"password,omitempty"`
	RefreshToken      string `json:"refresh_token,omitempty"`
	SyncEnabled       *bool  `json:"sync_enabled,omitempty"`
	AutoUpdateEnabled *bool  `json:"auto_update_enabled,omitempty"`
}

// Validate validates the ConnectionRequest using the validator.
func (r *ConnectionRequest) Validate() error {
	return validate.Struct(r)
}
