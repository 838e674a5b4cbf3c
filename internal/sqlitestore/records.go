package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/types"
)

type scanner interface {
	Scan(dest ...any) error
}

// ---- applications ----

const applicationColumns = `id, user_id, job_listing_ref, company, title, location, status,
	status_history, applied_at, created_at, updated_at`

// CreateApplication inserts a new application
func (s *Store) CreateApplication(ctx context.Context, app *types.JobApplication) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Status == "" {
		app.Status = types.StatusApplied
	}
	if app.AppliedAt.IsZero() {
		app.AppliedAt = time.Now().UTC()
	}
	if app.History == nil {
		app.History = []types.StatusChange{}
	}
	history, err := json.Marshal(app.History)
	if err != nil {
		return fmt.Errorf("failed to marshal status history: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_applications (id, user_id, job_listing_ref, company, title, location, status, status_history, applied_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID.String(), app.UserID.String(), app.JobListingRef, app.Company, app.Title, app.Location,
		string(app.Status), string(history), formatTime(app.AppliedAt), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	app.CreatedAt, app.UpdatedAt = now, now
	return nil
}

// GetApplication retrieves an application by ID
func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*types.JobApplication, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = ?`, id.String())
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListApplications lists a user's applications, most recent first
func (s *Store) ListApplications(ctx context.Context, filter types.ApplicationFilter) ([]types.JobApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE user_id = ?`
	args := []any{filter.UserID.String()}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY applied_at DESC LIMIT ?`
	args = append(args, types.NormalizeLimit(filter.Limit))
	return s.queryApplications(ctx, query, args...)
}

// ListOpenApplications lists applications not yet rejected or hired
func (s *Store) ListOpenApplications(ctx context.Context, userID uuid.UUID) ([]types.JobApplication, error) {
	return s.queryApplications(ctx,
		`SELECT `+applicationColumns+` FROM job_applications
		 WHERE user_id = ? AND status NOT IN ('rejected', 'hired')
		 ORDER BY applied_at DESC`,
		userID.String(),
	)
}

// UpdateApplicationStatus changes status and appends to history in one
// statement, guarded by the expected current status.
func (s *Store) UpdateApplicationStatus(ctx context.Context, appID uuid.UUID, from, to types.Status, change types.StatusChange) (bool, error) {
	entry, err := json.Marshal(change)
	if err != nil {
		return false, fmt.Errorf("failed to marshal status change: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE job_applications
		 SET status = ?, status_history = json_insert(status_history, '$[#]', json(?)), updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), string(entry), nowString(), appID.String(), string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// SetApplicationStatus records a manual status change
func (s *Store) SetApplicationStatus(ctx context.Context, appID uuid.UUID, to types.Status) (*types.JobApplication, error) {
	app, err := s.GetApplication(ctx, appID)
	if err != nil || app == nil {
		return nil, err
	}
	change := types.StatusChange{From: app.Status, To: to, ChangedAt: time.Now().UTC(), Source: types.ChangeSourceManual}
	ok, err := s.UpdateApplicationStatus(ctx, appID, app.Status, to, change)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("application %s changed concurrently", appID)
	}
	return s.GetApplication(ctx, appID)
}

func (s *Store) queryApplications(ctx context.Context, query string, args ...any) ([]types.JobApplication, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []types.JobApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

func scanApplication(row scanner) (*types.JobApplication, error) {
	var app types.JobApplication
	var status, history, appliedAt, createdAt, updatedAt string
	err := row.Scan(&app.ID, &app.UserID, &app.JobListingRef, &app.Company, &app.Title, &app.Location,
		&status, &history, &appliedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	app.Status = types.Status(status)
	app.AppliedAt = parseTime(appliedAt)
	app.CreatedAt = parseTime(createdAt)
	app.UpdatedAt = parseTime(updatedAt)
	if history != "" {
		if err := json.Unmarshal([]byte(history), &app.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
		}
	}
	return &app, nil
}

// ---- email events ----

const eventColumns = `id, user_id, message_id, sender_email, sender_name, subject, body, received_at,
	label, confidence, company, job_title, location, sentiment, source, reason,
	needs_review, user_reviewed, matched_application_id, match_score, status_updated, processed_at, created_at`

// ExistingMessageIDs returns which of messageIDs are already stored for the user
func (s *Store) ExistingMessageIDs(ctx context.Context, userID uuid.UUID, messageIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(messageIDs) == 0 {
		return existing, nil
	}

	args := []any{userID.String()}
	for _, id := range messageIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(messageIDs)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id FROM email_events WHERE user_id = ? AND message_id IN (`+placeholders+`)`, args...)
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

// InsertEmailEvent stores a new event, reporting false on a (user, message id) conflict
func (s *Store) InsertEmailEvent(ctx context.Context, e *types.EmailEvent) (bool, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO email_events (id, user_id, message_id, sender_email, sender_name, subject, body, received_at,
			label, confidence, company, job_title, location, sentiment, source, reason,
			needs_review, user_reviewed, matched_application_id, match_score, status_updated, processed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, message_id) DO NOTHING`,
		e.ID.String(), e.UserID.String(), e.MessageID, e.SenderEmail, e.SenderName, e.Subject, e.Body, formatTime(e.ReceivedAt),
		string(e.Label), e.Confidence, e.Company, e.JobTitle, e.Location, string(e.Sentiment), string(e.Source), e.Reason,
		e.NeedsReview, e.UserReviewed, nullUUID(e.MatchedApplicationID), nullFloat(e.MatchScore), e.StatusUpdated,
		formatTime(e.ProcessedAt), nowString(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert email event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdateEmailEvent rewrites the classification, review and match fields of an event
func (s *Store) UpdateEmailEvent(ctx context.Context, e *types.EmailEvent) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE email_events SET
			label = ?, confidence = ?, company = ?, job_title = ?, location = ?, sentiment = ?,
			source = ?, reason = ?, needs_review = ?, user_reviewed = ?,
			matched_application_id = ?, match_score = ?, status_updated = ?, processed_at = ?
		 WHERE id = ?`,
		string(e.Label), e.Confidence, e.Company, e.JobTitle, e.Location, string(e.Sentiment),
		string(e.Source), e.Reason, e.NeedsReview, e.UserReviewed,
		nullUUID(e.MatchedApplicationID), nullFloat(e.MatchScore), e.StatusUpdated, formatTime(e.ProcessedAt),
		e.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update email event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("email event not found: %s", e.ID)
	}
	return nil
}

// GetEmailEvent retrieves an event by ID
func (s *Store) GetEmailEvent(ctx context.Context, id uuid.UUID) (*types.EmailEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM email_events WHERE id = ?`, id.String())
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get email event: %w", err)
	}
	return e, nil
}

// ListEmailEvents lists a user's events, most recently received first
func (s *Store) ListEmailEvents(ctx context.Context, filter types.EventFilter) ([]types.EmailEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM email_events WHERE user_id = ?`
	args := []any{filter.UserID.String()}
	if filter.Label != "" {
		query += ` AND label = ?`
		args = append(args, string(filter.Label))
	}
	if filter.NeedsReview != nil {
		query += ` AND needs_review = ?`
		args = append(args, *filter.NeedsReview)
	}
	query += ` ORDER BY received_at DESC, created_at DESC LIMIT ? OFFSET ?`
	args = append(args, types.NormalizeLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// MarkEventReviewed records a human review, optionally correcting the label
func (s *Store) MarkEventReviewed(ctx context.Context, id uuid.UUID, label *types.Label) (*types.EmailEvent, error) {
	var corrected any
	if label != nil {
		corrected = string(*label)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE email_events SET user_reviewed = 1, needs_review = 0, label = COALESCE(?, label) WHERE id = ?`,
		corrected, id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark event reviewed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetEmailEvent(ctx, id)
}

// GetEmailSummary aggregates a user's processed email statistics
func (s *Store) GetEmailSummary(ctx context.Context, userID uuid.UUID) (*types.EmailSummary, error) {
	summary := &types.EmailSummary{UserID: userID, ByLabel: make(map[types.Label]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, COUNT(*),
			SUM(CASE WHEN needs_review = 1 AND user_reviewed = 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN status_updated = 1 THEN 1 ELSE 0 END)
		 FROM email_events WHERE user_id = ? GROUP BY label`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize email events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var total, review, updated int
		if err := rows.Scan(&label, &total, &review, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan email summary: %w", err)
		}
		summary.ByLabel[types.Label(label)] = total
		summary.TotalProcessed += total
		summary.NeedsReview += review
		summary.StatusUpdates += updated
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	conn, err := s.GetMailConnection(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		summary.Connected = conn.IsAuthorized
		summary.LastSyncAt = conn.LastSyncAt
	}
	return summary, nil
}

func scanEvent(row scanner) (*types.EmailEvent, error) {
	var e types.EmailEvent
	var label, sentiment, source, receivedAt, processedAt, createdAt string
	var matched uuid.NullUUID
	var score sql.NullFloat64
	err := row.Scan(&e.ID, &e.UserID, &e.MessageID, &e.SenderEmail, &e.SenderName, &e.Subject, &e.Body, &receivedAt,
		&label, &e.Confidence, &e.Company, &e.JobTitle, &e.Location, &sentiment, &source, &e.Reason,
		&e.NeedsReview, &e.UserReviewed, &matched, &score, &e.StatusUpdated, &processedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	e.Label = types.Label(label)
	e.Sentiment = types.Sentiment(sentiment)
	e.Source = types.ClassificationSource(source)
	e.ReceivedAt = parseTime(receivedAt)
	e.ProcessedAt = parseTime(processedAt)
	e.CreatedAt = parseTime(createdAt)
	if matched.Valid {
		id := matched.UUID
		e.MatchedApplicationID = &id
	}
	if score.Valid {
		v := score.Float64
		e.MatchScore = &v
	}
	return &e, nil
}

// ---- mail connections ----

const connectionColumns = `user_id, provider, account_email, imap_host, imap_port, imap_username, sealed_token,
	is_authorized, sync_enabled, auto_update_enabled, last_sync_at, total_emails_processed, created_at, updated_at`

// GetMailConnection retrieves a user's mail connection
func (s *Store) GetMailConnection(ctx context.Context, userID uuid.UUID) (*types.MailConnection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM mail_connections WHERE user_id = ?`, userID.String())
	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mail connection: %w", err)
	}
	return c, nil
}

// UpsertMailConnection creates or replaces a user's connection settings.
// A nil sealed token keeps the stored one.
func (s *Store) UpsertMailConnection(ctx context.Context, c *types.MailConnection) error {
	now := nowString()
	var token any
	if c.SealedToken != nil {
		token = c.SealedToken
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mail_connections (user_id, provider, account_email, imap_host, imap_port, imap_username,
			sealed_token, is_authorized, sync_enabled, auto_update_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			provider = excluded.provider, account_email = excluded.account_email,
			imap_host = excluded.imap_host, imap_port = excluded.imap_port, imap_username = excluded.imap_username,
			sealed_token = COALESCE(excluded.sealed_token, mail_connections.sealed_token),
			is_authorized = excluded.is_authorized, sync_enabled = excluded.sync_enabled,
			auto_update_enabled = excluded.auto_update_enabled, updated_at = excluded.updated_at`,
		c.UserID.String(), string(c.Provider), c.AccountEmail, c.IMAPHost, c.IMAPPort, c.IMAPUsername,
		token, c.IsAuthorized, c.SyncEnabled, c.AutoUpdateEnabled, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mail connection: %w", err)
	}
	return nil
}

// UpdateMailToken stores a refreshed, sealed OAuth token
func (s *Store) UpdateMailToken(ctx context.Context, userID uuid.UUID, sealed []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE mail_connections SET sealed_token = ?, updated_at = ? WHERE user_id = ?`,
		sealed, nowString(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update mail token: %w", err)
	}
	return nil
}

// DeleteMailConnection removes a user's connection
func (s *Store) DeleteMailConnection(ctx context.Context, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mail_connections WHERE user_id = ?`, userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete mail connection: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("mail connection not found: %s", userID)
	}
	return nil
}

// ListSyncableConnections lists connections with sync enabled and valid credentials
func (s *Store) ListSyncableConnections(ctx context.Context) ([]types.MailConnection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM mail_connections
		 WHERE sync_enabled = 1 AND is_authorized = 1
		 ORDER BY last_sync_at IS NOT NULL, last_sync_at`)
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
func (s *Store) SetConnectionAuthorized(ctx context.Context, userID uuid.UUID, authorized bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE mail_connections SET is_authorized = ?, updated_at = ? WHERE user_id = ?`,
		authorized, nowString(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update connection authorization: %w", err)
	}
	return nil
}

// MarkSynced records the end of a sync and adds to the processed counter
func (s *Store) MarkSynced(ctx context.Context, userID uuid.UUID, at time.Time, processed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE mail_connections
		 SET last_sync_at = ?, total_emails_processed = total_emails_processed + ?, updated_at = ?
		 WHERE user_id = ?`,
		formatTime(at), processed, nowString(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync stats: %w", err)
	}
	return nil
}

func scanConnection(row scanner) (*types.MailConnection, error) {
	var c types.MailConnection
	var provider, createdAt, updatedAt string
	var lastSync sql.NullString
	err := row.Scan(&c.UserID, &provider, &c.AccountEmail, &c.IMAPHost, &c.IMAPPort, &c.IMAPUsername, &c.SealedToken,
		&c.IsAuthorized, &c.SyncEnabled, &c.AutoUpdateEnabled, &lastSync, &c.TotalEmailsProcessed, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Provider = types.MailProviderKind(provider)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	if lastSync.Valid && lastSync.String != "" {
		t := parseTime(lastSync.String)
		c.LastSyncAt = &t
	}
	return &c, nil
}

// ---- sync runs ----

// RecordSyncRun stores the summary of a finished sync run
func (s *Store) RecordSyncRun(ctx context.Context, r *types.SyncSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, user_id, lookback_days, started_at, finished_at, outcome, fetched,
			skipped_duplicates, classified, matched, updated, needs_review, errors, pending, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID.String(), r.UserID.String(), r.LookbackDays, formatTime(r.StartedAt), formatTime(r.FinishedAt), string(r.Outcome),
		r.Fetched, r.SkippedDuplicates, r.Classified, r.Matched, r.Updated, r.NeedsReview, r.Errors, r.Pending, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// ListSyncRuns lists a user's sync runs, newest first
func (s *Store) ListSyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]types.SyncSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, lookback_days, started_at, finished_at, outcome, fetched, skipped_duplicates,
			classified, matched, updated, needs_review, errors, pending, error_message
		 FROM sync_runs WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`,
		userID.String(), types.NormalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []types.SyncSummary
	for rows.Next() {
		var r types.SyncSummary
		var startedAt, finishedAt, outcome string
		if err := rows.Scan(&r.ID, &r.UserID, &r.LookbackDays, &startedAt, &finishedAt, &outcome, &r.Fetched,
			&r.SkippedDuplicates, &r.Classified, &r.Matched, &r.Updated, &r.NeedsReview, &r.Errors, &r.Pending,
			&r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		r.StartedAt = parseTime(startedAt)
		r.FinishedAt = parseTime(finishedAt)
		r.Outcome = types.SyncOutcome(outcome)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
