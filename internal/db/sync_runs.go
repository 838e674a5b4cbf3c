package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/types"
)

// RecordSyncRun stores the summary of a finished sync run
func (db *DB) RecordSyncRun(ctx context.Context, s *types.SyncSummary) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, user_id, lookback_days, started_at, finished_at, outcome, fetched,
			skipped_duplicates, classified, matched, updated, needs_review, errors, pending, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO NOTHING`,
		s.ID, s.UserID, s.LookbackDays, s.StartedAt, s.FinishedAt, s.Outcome, s.Fetched,
		s.SkippedDuplicates, s.Classified, s.Matched, s.Updated, s.NeedsReview, s.Errors, s.Pending, s.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// ListSyncRuns lists a user's sync runs, newest first
func (db *DB) ListSyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]types.SyncSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, lookback_days, started_at, finished_at, outcome, fetched, skipped_duplicates,
			classified, matched, updated, needs_review, errors, pending, error_message
		 FROM sync_runs WHERE user_id = $1 ORDER BY started_at DESC LIMIT $2`,
		userID, types.NormalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []types.SyncSummary
	for rows.Next() {
		var s types.SyncSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.LookbackDays, &s.StartedAt, &s.FinishedAt, &s.Outcome, &s.Fetched,
			&s.SkippedDuplicates, &s.Classified, &s.Matched, &s.Updated, &s.NeedsReview, &s.Errors, &s.Pending,
			&s.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}
