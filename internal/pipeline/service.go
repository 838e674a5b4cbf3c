// Package pipeline orchestrates email sync runs: fetch, dedupe, classify,
// match and status update, one user at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/classify"
	"github.com/jonathan/job-tracker/internal/mail"
	"github.com/jonathan/job-tracker/internal/matching"
	"github.com/jonathan/job-tracker/internal/retry"
	"github.com/jonathan/job-tracker/internal/status"
	"github.com/jonathan/job-tracker/internal/types"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	status.Store

	// ExistingMessageIDs returns the subset of messageIDs already stored for the user.
	ExistingMessageIDs(ctx context.Context, userID uuid.UUID, messageIDs []string) (map[string]bool, error)
	// InsertEmailEvent stores a new event. It reports false, without error,
	// when an event with the same (user, message id) already exists.
	InsertEmailEvent(ctx context.Context, event *types.EmailEvent) (bool, error)
	// UpdateEmailEvent rewrites the classification, review and match fields of an event.
	UpdateEmailEvent(ctx context.Context, event *types.EmailEvent) error
	GetEmailEvent(ctx context.Context, id uuid.UUID) (*types.EmailEvent, error)

	ListOpenApplications(ctx context.Context, userID uuid.UUID) ([]types.JobApplication, error)
	GetMailConnection(ctx context.Context, userID uuid.UUID) (*types.MailConnection, error)

	RecordSyncRun(ctx context.Context, summary *types.SyncSummary) error
	MarkSynced(ctx context.Context, userID uuid.UUID, at time.Time, processed int) error
}

// Service runs syncs and single-email operations for any user.
type Service struct {
	store      Store
	provider   mail.Provider
	classifier classify.Classifier
	matcher    *matching.Matcher
	updater    *status.Updater
	cfg        Config
	now        func() time.Time
	onProgress ProgressCallback
}

// NewService wires the orchestrator. classifier is usually a *classify.Pipeline.
func NewService(store Store, provider mail.Provider, classifier classify.Classifier, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:      store,
		provider:   provider,
		classifier: classifier,
		matcher:    matching.New(cfg.Match),
		updater:    status.NewUpdater(store, cfg.Status),
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithProgress returns a copy of the service that reports progress to cb.
func (s *Service) WithProgress(cb ProgressCallback) *Service {
	cp := *s
	cp.onProgress = cb
	return &cp
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// ClassifyEmail classifies one email and builds the event that would be stored.
// Nothing is written.
func (s *Service) ClassifyEmail(ctx context.Context, userID uuid.UUID, raw types.RawEmail) *types.EmailEvent {
	c, err := s.classifier.Classify(ctx, raw)
	if err != nil {
		log.Printf("[sync] Classification of %s failed: %v", raw.MessageID, err)
		c = types.Classification{
			Label:     types.LabelUnknown,
			Sentiment: types.SentimentNeutral,
			Source:    types.SourceFallback,
			Reason:    "classification failed",
			Failed:    true,
		}
	}
	c.Confidence = types.ClampConfidence(c.Confidence)
	return types.NewEmailEvent(userID, raw, c, s.cfg.ReviewThreshold, s.now().UTC())
}

// PreviewMatch ranks the user's open applications against a classified event
// without applying anything.
func (s *Service) PreviewMatch(ctx context.Context, event *types.EmailEvent) ([]matching.Result, error) {
	apps, err := s.store.ListOpenApplications(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return s.matcher.Rank(event, apps, s.now()), nil
}

// MatchAndUpdate matches a stored event to one of the user's applications and
// applies the status transition its label implies.
func (s *Service) MatchAndUpdate(ctx context.Context, event *types.EmailEvent, userID uuid.UUID) (types.MatchOutcome, error) {
	if event.UserID == uuid.Nil {
		event.UserID = userID
	}
	if event.UserID != userID {
		return types.MatchOutcome{}, &DataError{Record: "email event " + event.ID.String(), Message: "event belongs to another user"}
	}
	return s.matchAndUpdate(ctx, event, s.autoUpdateFor(ctx, userID))
}

// ReprocessEvent re-classifies a stored event and runs matching and the
// status update again. Earlier match results on the event are replaced.
func (s *Service) ReprocessEvent(ctx context.Context, eventID uuid.UUID) (*types.EmailEvent, types.MatchOutcome, error) {
	event, err := s.store.GetEmailEvent(ctx, eventID)
	if err != nil {
		return nil, types.MatchOutcome{}, fmt.Errorf("failed to load email event: %w", err)
	}
	if event == nil {
		return nil, types.MatchOutcome{}, ErrEventNotFound
	}

	fresh := s.ClassifyEmail(ctx, event.UserID, event.Raw())
	event.Classification = fresh.Classification
	event.NeedsReview = fresh.NeedsReview
	event.ProcessedAt = fresh.ProcessedAt
	event.MatchedApplicationID = nil
	event.MatchScore = nil
	event.StatusUpdated = false

	if !event.Label.IsJobRelated() {
		if err := s.saveEvent(ctx, event); err != nil {
			return event, types.MatchOutcome{}, err
		}
		return event, types.MatchOutcome{Reason: "not job related"}, nil
	}

	outcome, err := s.matchAndUpdate(ctx, event, s.autoUpdateFor(ctx, event.UserID))
	return event, outcome, err
}

func (s *Service) autoUpdateFor(ctx context.Context, userID uuid.UUID) bool {
	conn, err := s.store.GetMailConnection(ctx, userID)
	if err != nil {
		log.Printf("[sync] Could not load connection for %s, using default auto-update: %v", userID, err)
		return s.cfg.DefaultAutoUpdate
	}
	if conn == nil {
		return s.cfg.DefaultAutoUpdate
	}
	return conn.AutoUpdateEnabled
}

// matchAndUpdate runs the matcher and updater for a persisted event and saves
// the event's match fields. The returned error joins an update failure with a
// failure to save the event.
func (s *Service) matchAndUpdate(ctx context.Context, event *types.EmailEvent, autoUpdate bool) (types.MatchOutcome, error) {
	if !event.Label.IsJobRelated() {
		return types.MatchOutcome{Reason: "not job related"}, nil
	}

	apps, err := s.store.ListOpenApplications(ctx, event.UserID)
	if err != nil {
		return types.MatchOutcome{}, fmt.Errorf("failed to list applications: %w", err)
	}

	best, ok := s.matcher.Match(event, apps, s.now())
	if !ok {
		reason := "no open applications"
		if best.Application != nil {
			reason = fmt.Sprintf("best candidate scored %.2f, below %.2f", best.Score, s.cfg.Match.MinScore)
		}
		return types.MatchOutcome{Score: best.Score, Reason: reason}, s.saveEvent(ctx, event)
	}

	app := best.Application
	if err := validateApplication(app); err != nil {
		event.NeedsReview = true
		log.Printf("[sync] %v", err)
		return types.MatchOutcome{Reason: err.Error()}, errors.Join(err, s.saveEvent(ctx, event))
	}

	appID, score := app.ID, best.Score
	event.MatchedApplicationID = &appID
	event.MatchScore = &score
	outcome := types.MatchOutcome{Matched: true, ApplicationID: &appID, Score: score}

	res, applyErr := s.updater.Apply(ctx, event, app, autoUpdate)
	outcome.FromStatus = res.From
	outcome.ToStatus = res.To
	outcome.Reason = res.Reason
	outcome.Updated = res.Updated
	if res.NeedsReview {
		event.NeedsReview = true
	}
	event.StatusUpdated = res.Updated

	return outcome, errors.Join(applyErr, s.saveEvent(ctx, event))
}

// saveEvent writes the event's mutable fields, retrying once.
func (s *Service) saveEvent(ctx context.Context, event *types.EmailEvent) error {
	err := retry.Do(ctx, retry.Policy{Attempts: 2, Backoff: s.cfg.WriteBackoff, Label: "save email event " + event.MessageID},
		func(ctx context.Context) error {
			return s.store.UpdateEmailEvent(ctx, event)
		})
	if err != nil {
		return &status.PersistenceError{Message: "failed to save email event " + event.ID.String(), Cause: err}
	}
	return nil
}

// validateApplication rejects stored applications the updater cannot act on.
func validateApplication(app *types.JobApplication) error {
	record := "application " + app.ID.String()
	if !app.Status.IsValid() {
		return &DataError{Record: record, Message: fmt.Sprintf("invalid status %q", app.Status)}
	}
	if strings.TrimSpace(app.Company) == "" && strings.TrimSpace(app.Title) == "" {
		return &DataError{Record: record, Message: "missing company and title"}
	}
	return nil
}
