package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-tracker/internal/types"
)

const connectionColumns = `user_id, provider, account_email, imap_host, imap_port, imap_username, sealed_token,
	is_authorized, sync_enabled, auto_update_enabled, last_sync_at, total_emails_processed, created_at, updated_at`

// GetMailConnection retrieves a user's mail connection
func (db *DB) GetMailConnection(ctx context.Context, userID uuid.UUID) (*types.MailConnection, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM mail_connections WHERE user_id = $1`, userID)
	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mail connection: %w", err)
	}
	return c, nil
}

// UpsertMailConnection creates or replaces a user's connection settings.
// Sync counters are preserved; a nil sealed token keeps the stored one.
func (db *DB) UpsertMailConnection(ctx context.Context, c *types.MailConnection) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO mail_connections (user_id, provider, account_email, imap_host, imap_port, imap_username,
			sealed_token, is_authorized, sync_enabled, auto_update_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
			provider = $2, account_email = $3, imap_host = $4, imap_port = $5, imap_username = $6,
			sealed_token = COALESCE($7, mail_connections.sealed_token),
			is_authorized = $8, sync_enabled = $9, auto_update_enabled = $10, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		c.UserID, c.Provider, c.AccountEmail, c.IMAPHost, c.IMAPPort, c.IMAPUsername,
		c.SealedToken, c.IsAuthorized, c.SyncEnabled, c.AutoUpdateEnabled,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert mail connection: %w", err)
	}
	return nil
}

// UpdateMailToken stores a refreshed, sealed OAuth token
func (db *DB) UpdateMailToken(ctx context.Context, userID uuid.UUID, sealed []byte) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE mail_connections SET sealed_token = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, sealed,
	)
	if err != nil {
		return fmt.Errorf("failed to update mail token: %w", err)
	}
	return nil
}

// DeleteMailConnection removes a user's connection
func (db *DB) DeleteMailConnection(ctx context.Context, userID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM mail_connections WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete mail connection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("mail connection not found: %s", userID)
	}
	return nil
}

// ListSyncableConnections lists connections with sync enabled and valid credentials
func (db *DB) ListSyncableConnections(ctx context.Context) ([]types.MailConnection, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+connectionColumns+` FROM mail_connections
		 WHERE sync_enabled AND is_authorized
		 ORDER BY last_sync_at ASC NULLS FIRST`)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []types.MailConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

// SetConnectionAuthorized flags whether a connection's credentials work
func (db *DB) SetConnectionAuthorized(ctx context.Context, userID uuid.UUID, authorized bool) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE mail_connections SET is_authorized = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, authorized,
	)
	if err != nil {
		return fmt.Errorf("failed to update connection authorization: %w", err)
	}
	return nil
}

// MarkSynced records the end of a sync and adds to the processed counter
func (db *DB) MarkSynced(ctx context.Context, userID uuid.UUID, at time.Time, processed int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE mail_connections
		 SET last_sync_at = $2, total_emails_processed = total_emails_processed + $3, updated_at = NOW()
		 WHERE user_id = $1`,
		userID, at, processed,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync stats: %w", err)
	}
	return nil
}

func scanConnection(row pgx.Row) (*types.MailConnection, error) {
	var c types.MailConnection
	err := row.Scan(&c.UserID, &c.Provider, &c.AccountEmail, &c.IMAPHost, &c.IMAPPort, &c.IMAPUsername, &c.SealedToken,
		&c.IsAuthorized, &c.SyncEnabled, &c.AutoUpdateEnabled, &c.LastSyncAt, &c.TotalEmailsProcessed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
