package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/classify"
	"github.com/jonathan/job-tracker/internal/mail"
	"github.com/jonathan/job-tracker/internal/retry"
	"github.com/jonathan/job-tracker/internal/status"
	"github.com/jonathan/job-tracker/internal/types"
)

// SyncUserEmails fetches the user's recent mail and processes every email not
// seen before, oldest first. It never returns an error: failures are reflected
// in the summary's outcome and counters. lookbackDays <= 0 uses the configured default.
//
// Cancelling ctx stops the run between emails; the email in flight finishes.
func (s *Service) SyncUserEmails(ctx context.Context, userID uuid.UUID, lookbackDays int) *types.SyncSummary {
	if lookbackDays <= 0 {
		lookbackDays = s.cfg.LookbackDays
	}
	start := s.now().UTC()
	summary := &types.SyncSummary{
		ID:           uuid.New(),
		UserID:       userID,
		LookbackDays: lookbackDays,
		StartedAt:    start,
		Outcome:      types.OutcomeCompleted,
	}
	runID := summary.ID.String()
	defer s.finish(ctx, summary)

	s.emit(runID, "start", CategoryLifecycle, fmt.Sprintf("Syncing the last %d days of mail", lookbackDays), nil)

	since := start.AddDate(0, 0, -lookbackDays)
	emails, err := s.fetch(ctx, userID, since)
	if err != nil {
		s.abort(ctx, summary, err)
		return summary
	}

	for i := range emails {
		emails[i].MessageID = messageKey(emails[i])
	}
	sortOldestFirst(emails)
	summary.Fetched = len(emails)
	s.emit(runID, "fetch", CategoryFetch, fmt.Sprintf("Fetched %d candidate emails", len(emails)), map[string]int{"count": len(emails)})

	if len(emails) == 0 {
		return summary
	}

	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = e.MessageID
	}
	existing, err := s.store.ExistingMessageIDs(ctx, userID, ids)
	if err != nil {
		summary.Pending = len(emails)
		s.abort(ctx, summary, fmt.Errorf("failed to load processed message ids: %w", err))
		return summary
	}

	autoUpdate := s.autoUpdateFor(ctx, userID)
	seen := make(map[string]bool, len(emails))

	for i, raw := range emails {
		if ctx.Err() != nil {
			summary.Outcome = types.OutcomeCancelled
			summary.Pending = len(emails) - i
			summary.ErrorMessage = "sync cancelled"
			log.Printf("[sync] User %s: cancelled with %d emails pending", userID, summary.Pending)
			break
		}

		progress := EmailProgress{Index: i + 1, Total: len(emails), MessageID: raw.MessageID, Subject: raw.Subject}

		if existing[raw.MessageID] || seen[raw.MessageID] {
			summary.SkippedDuplicates++
			progress.Duplicate = true
			s.emit(runID, "email", CategoryEmail, "Skipped already processed email", progress)
			continue
		}
		seen[raw.MessageID] = true

		res := s.processEmail(ctx, userID, raw, autoUpdate)
		if res.duplicate {
			summary.SkippedDuplicates++
			progress.Duplicate = true
			s.emit(runID, "email", CategoryEmail, "Skipped already processed email", progress)
			continue
		}

		summary.Classified++
		progress.Label = string(res.event.Label)
		progress.Confidence = res.event.Confidence
		if res.stored && res.event.NeedsReview {
			summary.NeedsReview++
		}
		if res.outcome.Matched {
			summary.Matched++
			progress.Matched = true
		}
		if res.outcome.Updated {
			summary.Updated++
			progress.Updated = true
		}
		if res.err != nil {
			summary.Errors++
			progress.Error = res.err.Error()
			log.Printf("[sync] Error processing email %s for user %s: %v", raw.MessageID, userID, res.err)
		}
		s.emit(runID, "email", CategoryEmail, fmt.Sprintf("Classified %q as %s", raw.Subject, res.event.Label), progress)
	}

	return summary
}

// fetch checks the connection and fetches candidates, retrying transient failures.
func (s *Service) fetch(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.RawEmail, error) {
	policy := retry.Policy{
		Attempts:  s.cfg.FetchAttempts,
		Backoff:   s.cfg.FetchBackoff,
		Retryable: mail.IsTransient,
		Label:     "mail fetch " + userID.String(),
	}

	if err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return s.provider.CheckConnection(ctx, userID)
	}); err != nil {
		return nil, err
	}

	var emails []types.RawEmail
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		emails, err = s.provider.FetchCandidateEmails(ctx, userID, since)
		return err
	})
	return emails, err
}

type emailResult struct {
	event     *types.EmailEvent
	stored    bool
	duplicate bool
	outcome   types.MatchOutcome
	err       error
}

// processEmail classifies, stores, matches and updates one email. It runs
// detached from the caller's cancellation, bounded by the per-email timeout.
func (s *Service) processEmail(parent context.Context, userID uuid.UUID, raw types.RawEmail, autoUpdate bool) emailResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.EmailTimeout)
	defer cancel()

	event := s.ClassifyEmail(ctx, userID, raw)

	var inserted bool
	err := retry.Do(ctx, retry.Policy{Attempts: 2, Backoff: s.cfg.WriteBackoff, Label: "store email event " + raw.MessageID},
		func(ctx context.Context) error {
			var err error
			inserted, err = s.store.InsertEmailEvent(ctx, event)
			return err
		})
	if err != nil {
		return emailResult{event: event, err: &status.PersistenceError{Message: "failed to store email event " + raw.MessageID, Cause: err}}
	}
	if !inserted {
		return emailResult{event: event, duplicate: true}
	}

	res := emailResult{event: event, stored: true}
	if event.Failed {
		res.err = &classify.ClassificationError{MessageID: raw.MessageID, Message: event.Reason}
		return res
	}
	if event.Label.IsJobRelated() {
		res.outcome, res.err = s.matchAndUpdate(ctx, event, autoUpdate)
	}
	return res
}

// abort ends a run before per-email processing could finish.
func (s *Service) abort(ctx context.Context, summary *types.SyncSummary, err error) {
	switch {
	case mail.IsAuthError(err):
		summary.Outcome = types.OutcomeAuthError
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		summary.Outcome = types.OutcomeCancelled
	default:
		summary.Outcome = types.OutcomeConnectionError
	}
	summary.ErrorMessage = err.Error()
	log.Printf("[sync] User %s: %s: %v", summary.UserID, summary.Outcome, err)
	s.emit(summary.ID.String(), "abort", CategoryError, err.Error(), map[string]string{"outcome": string(summary.Outcome)})
}

// finish stamps the summary, records the run and updates connection counters.
// The writes are not tied to ctx so a cancelled run is still recorded.
func (s *Service) finish(ctx context.Context, summary *types.SyncSummary) {
	summary.FinishedAt = s.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := retry.Do(ctx, retry.Policy{Attempts: 2, Backoff: s.cfg.WriteBackoff, Label: "record sync run"},
		func(ctx context.Context) error {
			return s.store.RecordSyncRun(ctx, summary)
		}); err != nil {
		log.Printf("[sync] Failed to record sync run for %s: %v", summary.UserID, err)
	}

	if summary.Outcome == types.OutcomeCompleted || summary.Outcome == types.OutcomeCancelled {
		if err := s.store.MarkSynced(ctx, summary.UserID, summary.FinishedAt, summary.Classified); err != nil {
			log.Printf("[sync] Failed to update sync stats for %s: %v", summary.UserID, err)
		}
	}

	log.Printf("[sync] User %s: %s in %v (fetched=%d skipped=%d classified=%d matched=%d updated=%d review=%d errors=%d pending=%d)",
		summary.UserID, summary.Outcome, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond),
		summary.Fetched, summary.SkippedDuplicates, summary.Classified, summary.Matched,
		summary.Updated, summary.NeedsReview, summary.Errors, summary.Pending)
	s.emit(summary.ID.String(), "complete", CategoryLifecycle, "Sync finished: "+string(summary.Outcome), summary)
}

// sortOldestFirst orders emails by receipt time, then message id.
func sortOldestFirst(emails []types.RawEmail) {
	sort.SliceStable(emails, func(i, j int) bool {
		if !emails[i].ReceivedAt.Equal(emails[j].ReceivedAt) {
			return emails[i].ReceivedAt.Before(emails[j].ReceivedAt)
		}
		return emails[i].MessageID < emails[j].MessageID
	})
}

// messageKey returns the dedupe key of an email. Providers always set a
// message id; the digest covers malformed messages without one.
func messageKey(e types.RawEmail) string {
	if id := strings.TrimSpace(e.MessageID); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(strings.ToLower(e.SenderEmail) + "\x00" + e.Subject + "\x00" + e.ReceivedAt.UTC().Format(time.RFC3339)))
	return "digest-" + hex.EncodeToString(sum[:12])
}
