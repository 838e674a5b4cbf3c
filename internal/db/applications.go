package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-tracker/internal/types"
)

const applicationColumns = `id, user_id, job_listing_ref, company, title, location, status,
	status_history, applied_at, created_at, updated_at`

// CreateApplication inserts a new application. ID, timestamps and status are
// filled in when empty.
func (db *DB) CreateApplication(ctx context.Context, app *types.JobApplication) error {
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

	err = db.pool.QueryRow(ctx,
		`INSERT INTO job_applications (id, user_id, job_listing_ref, company, title, location, status, status_history, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		app.ID, app.UserID, app.JobListingRef, app.Company, app.Title, app.Location, app.Status, history, app.AppliedAt,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// GetApplication retrieves an application by ID
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*types.JobApplication, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListApplications lists a user's applications, most recent first
func (db *DB) ListApplications(ctx context.Context, filter types.ApplicationFilter) ([]types.JobApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE user_id = $1`
	args := []any{filter.UserID}
	argNum := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}
	query += fmt.Sprintf(" ORDER BY applied_at DESC LIMIT $%d", argNum)
	args = append(args, types.NormalizeLimit(filter.Limit))

	return db.queryApplications(ctx, query, args...)
}

// ListOpenApplications lists the applications still eligible for automatic
// transitions (not rejected or hired)
func (db *DB) ListOpenApplications(ctx context.Context, userID uuid.UUID) ([]types.JobApplication, error) {
	return db.queryApplications(ctx,
		`SELECT `+applicationColumns+` FROM job_applications
		 WHERE user_id = $1 AND status NOT IN ('rejected', 'hired')
		 ORDER BY applied_at DESC`,
		userID,
	)
}

// UpdateApplicationStatus moves an application from one status to another and
// appends change to its history in a single statement. It reports false when
// the application is no longer in status from.
func (db *DB) UpdateApplicationStatus(ctx context.Context, appID uuid.UUID, from, to types.Status, change types.StatusChange) (bool, error) {
	entry, err := json.Marshal([]types.StatusChange{change})
	if err != nil {
		return false, fmt.Errorf("failed to marshal status change: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE job_applications
		 SET status = $3, status_history = status_history || $4::jsonb, updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		appID, from, to, entry,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// SetApplicationStatus records a manual status change, bypassing the
// automatic transition rules.
func (db *DB) SetApplicationStatus(ctx context.Context, appID uuid.UUID, to types.Status) (*types.JobApplication, error) {
	app, err := db.GetApplication(ctx, appID)
	if err != nil || app == nil {
		return nil, err
	}
	change := types.StatusChange{From: app.Status, To: to, ChangedAt: time.Now().UTC(), Source: types.ChangeSourceManual}
	ok, err := db.UpdateApplicationStatus(ctx, appID, app.Status, to, change)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("application %s changed concurrently", appID)
	}
	return db.GetApplication(ctx, appID)
}

func (db *DB) queryApplications(ctx context.Context, query string, args ...any) ([]types.JobApplication, error) {
	rows, err := db.pool.Query(ctx, query, args...)
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

func scanApplication(row pgx.Row) (*types.JobApplication, error) {
	var app types.JobApplication
	var history []byte
	err := row.Scan(&app.ID, &app.UserID, &app.JobListingRef, &app.Company, &app.Title, &app.Location,
		&app.Status, &history, &app.AppliedAt, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &app.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
		}
	}
	return &app, nil
}
