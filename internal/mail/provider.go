// Package mail fetches candidate emails from a user's mailbox over the Gmail API or IMAP.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/types"
)

// maxBodyChars bounds the cleaned body kept for each email
const maxBodyChars = 10000

// Provider gives read access to one kind of mailbox.
type Provider interface {
	// FetchCandidateEmails returns the emails received at or after since.
	FetchCandidateEmails(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.RawEmail, error)
	// CheckConnection verifies the stored credentials still work.
	CheckConnection(ctx context.Context, userID uuid.UUID) error
}

// ConnectionStore reads and updates per-user mailbox settings.
type ConnectionStore interface {
	GetMailConnection(ctx context.Context, userID uuid.UUID) (*types.MailConnection, error)
	UpdateMailToken(ctx context.Context, userID uuid.UUID, sealedToken []byte) error
}

// Router dispatches to the provider configured for each user.
type Router struct {
	connections ConnectionStore
	providers   map[types.MailProviderKind]Provider
}

// NewRouter creates a router over the given providers. Kinds without a provider are reported as auth errors.
func NewRouter(connections ConnectionStore, providers map[types.MailProviderKind]Provider) *Router {
	return &Router{connections: connections, providers: providers}
}

func (r *Router) providerFor(ctx context.Context, userID uuid.UUID) (Provider, error) {
	conn, err := r.connections.GetMailConnection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mail connection: %w", err)
	}
	if conn == nil {
		return nil, &AuthError{Provider: "mail", Message: "no mailbox connected"}
	}
	if !conn.IsAuthorized {
		return nil, &AuthError{Provider: string(conn.Provider), Message: "mailbox authorization revoked"}
	}
	p, ok := r.providers[conn.Provider]
	if !ok || p == nil {
		return nil, &AuthError{Provider: string(conn.Provider), Message: "mail provider not configured"}
	}
	return p, nil
}

// FetchCandidateEmails implements Provider.
func (r *Router) FetchCandidateEmails(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.RawEmail, error) {
	p, err := r.providerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.FetchCandidateEmails(ctx, userID, since)
}

// CheckConnection implements Provider.
func (r *Router) CheckConnection(ctx context.Context, userID uuid.UUID) error {
	p, err := r.providerFor(ctx, userID)
	if err != nil {
		return err
	}
	return p.CheckConnection(ctx, userID)
}
