package types

import (
	"time"

	"github.com/google/uuid"
)

// MailProviderKind identifies which mail backend serves a user.
type MailProviderKind string

// Mail provider kinds
const (
	ProviderGmail MailProviderKind = "gmail"
	ProviderIMAP  MailProviderKind = "imap"
)

// MailConnection holds a user's mailbox access settings and sync counters.
type MailConnection struct {
	UserID       uuid.UUID        `json:"user_id"`
	Provider     MailProviderKind `json:"provider"`
	AccountEmail string           `json:"account_email"`

	IMAPHost     string `json:"imap_host,omitempty"`
	IMAPPort     int    `json:"imap_port,omitempty"`
	IMAPUsername string `json:"imap_username,omitempty"`

	// SealedToken is the encrypted OAuth token; never serialized.
	SealedToken []byte `json:"-"`

	IsAuthorized         bool       `json:"is_authorized"`
	SyncEnabled          bool       `json:"sync_enabled"`
	AutoUpdateEnabled    bool       `json:"auto_update_enabled"`
	LastSyncAt           *time.Time `json:"last_sync_at,omitempty"`
	TotalEmailsProcessed int        `json:"total_emails_processed"`
	CreatedAt            time.Time  `json:"created_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at,omitempty"`
}
