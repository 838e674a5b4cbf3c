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

const eventColumns = `id, user_id, message_id, sender_email, sender_name, subject, body, received_at,
	label, confidence, company, job_title, location, sentiment, source, reason,
	needs_review, user_reviewed, matched_application_id, match_score, status_updated, processed_at, created_at`

// ExistingMessageIDs returns which of messageIDs are already stored for the user
func (db *DB) ExistingMessageIDs(ctx context.Context, userID uuid.UUID, messageIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(messageIDs) == 0 {
		return existing, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT message_id FROM email_events WHERE user_id = $1 AND message_id = ANY($2)`,
		userID, messageIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query message ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan message id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// InsertEmailEvent stores a new event. It reports false when the user already
// has an event for the same message id.
func (db *DB) InsertEmailEvent(ctx context.Context, e *types.EmailEvent) (bool, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}

	result, err := db.pool.Exec(ctx,
		`INSERT INTO email_events (id, user_id, message_id, sender_email, sender_name, subject, body, received_at,
			label, confidence, company, job_title, location, sentiment, source, reason,
			needs_review, user_reviewed, matched_application_id, match_score, status_updated, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		 ON CONFLICT (user_id, message_id) DO NOTHING`,
		e.ID, e.UserID, e.MessageID, e.SenderEmail, e.SenderName, e.Subject, e.Body, nullTime(e.ReceivedAt),
		e.Label, e.Confidence, e.Company, e.JobTitle, e.Location, e.Sentiment, e.Source, e.Reason,
		e.NeedsReview, e.UserReviewed, e.MatchedApplicationID, e.MatchScore, e.StatusUpdated, e.ProcessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert email event: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// UpdateEmailEvent rewrites the classification, review and match fields of an event
func (db *DB) UpdateEmailEvent(ctx context.Context, e *types.EmailEvent) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE email_events SET
			label = $2, confidence = $3, company = $4, job_title = $5, location = $6, sentiment = $7,
			source = $8, reason = $9, needs_review = $10, user_reviewed = $11,
			matched_application_id = $12, match_score = $13, status_updated = $14, processed_at = $15
		 WHERE id = $1`,
		e.ID, e.Label, e.Confidence, e.Company, e.JobTitle, e.Location, e.Sentiment,
		e.Source, e.Reason, e.NeedsReview, e.UserReviewed,
		e.MatchedApplicationID, e.MatchScore, e.StatusUpdated, e.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update email event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("email event not found: %s", e.ID)
	}
	return nil
}

// GetEmailEvent retrieves an event by ID
func (db *DB) GetEmailEvent(ctx context.Context, id uuid.UUID) (*types.EmailEvent, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM email_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get email event: %w", err)
	}
	return e, nil
}

// ListEmailEvents lists a user's events, most recently received first
func (db *DB) ListEmailEvents(ctx context.Context, filter types.EventFilter) ([]types.EmailEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM email_events WHERE user_id = $1`
	args := []any{filter.UserID}
	argNum := 2

	if filter.Label != "" {
		query += fmt.Sprintf(" AND label = $%d", argNum)
		args = append(args, filter.Label)
		argNum++
	}
	if filter.NeedsReview != nil {
		query += fmt.Sprintf(" AND needs_review = $%d", argNum)
		args = append(args, *filter.NeedsReview)
		argNum++
	}
	query += fmt.Sprintf(" ORDER BY received_at DESC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, types.NormalizeLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list email events: %w", err)
	}
	defer rows.Close()

	var events []types.EmailEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// MarkEventReviewed records a human review, optionally correcting the label.
// The review flag is cleared.
func (db *DB) MarkEventReviewed(ctx context.Context, id uuid.UUID, label *types.Label) (*types.EmailEvent, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE email_events
		 SET user_reviewed = TRUE, needs_review = FALSE, label = COALESCE($2, label)
		 WHERE id = $1`,
		id, label,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark event reviewed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, nil
	}
	return db.GetEmailEvent(ctx, id)
}

// GetEmailSummary aggregates a user's processed email statistics
func (db *DB) GetEmailSummary(ctx context.Context, userID uuid.UUID) (*types.EmailSummary, error) {
	summary := &types.EmailSummary{UserID: userID, ByLabel: make(map[types.Label]int)}

	rows, err := db.pool.Query(ctx,
		`SELECT label, COUNT(*),
			COUNT(*) FILTER (WHERE needs_review AND NOT user_reviewed),
			COUNT(*) FILTER (WHERE status_updated)
		 FROM email_events WHERE user_id = $1 GROUP BY label`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize email events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label types.Label
		var total, review, updated int
		if err := rows.Scan(&label, &total, &review, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan email summary: %w", err)
		}
		summary.ByLabel[label] = total
		summary.TotalProcessed += total
		summary.NeedsReview += review
		summary.StatusUpdates += updated
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	conn, err := db.GetMailConnection(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		summary.Connected = conn.IsAuthorized
		summary.LastSyncAt = conn.LastSyncAt
	}
	return summary, nil
}

func scanEvent(row pgx.Row) (*types.EmailEvent, error) {
	var e types.EmailEvent
	var receivedAt *time.Time
	err := row.Scan(&e.ID, &e.UserID, &e.MessageID, &e.SenderEmail, &e.SenderName, &e.Subject, &e.Body, &receivedAt,
		&e.Label, &e.Confidence, &e.Company, &e.JobTitle, &e.Location, &e.Sentiment, &e.Source, &e.Reason,
		&e.NeedsReview, &e.UserReviewed, &e.MatchedApplicationID, &e.MatchScore, &e.StatusUpdated, &e.ProcessedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if receivedAt != nil {
		e.ReceivedAt = *receivedAt
	}
	return &e, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
