// Package status decides and applies application status transitions triggered by emails.
package status

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/retry"
	"github.com/jonathan/job-tracker/internal/types"
)

// Store persists status transitions. UpdateApplicationStatus must change the
// status and append the history entry in one statement, and only when the
// current status equals from. It reports false when the guard did not hold.
type Store interface {
	UpdateApplicationStatus(ctx context.Context, appID uuid.UUID, from, to types.Status, change types.StatusChange) (bool, error)
}

// Config tunes the updater.
type Config struct {
	AutoUpdateThreshold float64
	// OfferStatus is the target for offer emails: offer or hired
	OfferStatus  types.Status
	RetryBackoff time.Duration
}

// DefaultConfig returns the standard updater settings.
func DefaultConfig() Config {
	return Config{
		AutoUpdateThreshold: 0.7,
		OfferStatus:         types.StatusOffer,
		RetryBackoff:        500 * time.Millisecond,
	}
}

// Decision is what the updater would do for one matched email.
type Decision struct {
	Apply       bool
	From        types.Status
	To          types.Status
	NeedsReview bool
	Reason      string
}

// Result is the outcome of Apply.
type Result struct {
	Decision
	Updated bool
}

// Updater applies confidence-gated transitions.
type Updater struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewUpdater creates an updater. store may be nil when only Decide is used.
func NewUpdater(store Store, cfg Config) *Updater {
	def := DefaultConfig()
	if cfg.AutoUpdateThreshold <= 0 {
		cfg.AutoUpdateThreshold = def.AutoUpdateThreshold
	}
	if cfg.OfferStatus != types.StatusHired {
		cfg.OfferStatus = types.StatusOffer
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	return &Updater{store: store, cfg: cfg, now: time.Now}
}

// TargetStatus maps a label onto the status it moves an application to.
// ok is false for labels that never change status.
func TargetStatus(label types.Label, offerStatus types.Status) (types.Status, bool) {
	switch label {
	case types.LabelConfirmation:
		return types.StatusApplied, true
	case types.LabelInterview:
		return types.StatusInterviewing, true
	case types.LabelRejection:
		return types.StatusRejected, true
	case types.LabelOffer:
		return offerStatus, true
	default:
		return "", false
	}
}

// Decide evaluates the transition policy without touching storage.
func (u *Updater) Decide(app *types.JobApplication, c types.Classification, autoUpdate bool) Decision {
	d := Decision{From: app.Status}

	target, ok := TargetStatus(c.Label, u.cfg.OfferStatus)
	if !ok {
		d.Reason = fmt.Sprintf("label %s does not change status", c.Label)
		if c.Label == types.LabelUnknown {
			d.NeedsReview = true
		}
		return d
	}
	d.To = target

	switch {
	case c.Confidence < u.cfg.AutoUpdateThreshold:
		d.NeedsReview = true
		d.Reason = fmt.Sprintf("confidence %.2f below auto-update threshold %.2f", c.Confidence, u.cfg.AutoUpdateThreshold)
	case !autoUpdate:
		d.NeedsReview = true
		d.Reason = "automatic updates are disabled for this user"
	case app.Status.IsTerminal():
		d.Reason = fmt.Sprintf("application is in terminal status %s", app.Status)
	case app.Status == target:
		d.Reason = fmt.Sprintf("application already %s", target)
	case target != types.StatusRejected && target.Rank() < app.Status.Rank():
		d.Reason = fmt.Sprintf("%s -> %s would be a regression", app.Status, target)
	default:
		d.Apply = true
		d.Reason = fmt.Sprintf("%s -> %s", app.Status, target)
	}
	return d
}

// Apply decides and, when allowed, persists the transition for a matched email.
// A failed write is retried once; a second failure returns a *PersistenceError
// and the result asks for review.
func (u *Updater) Apply(ctx context.Context, event *types.EmailEvent, app *types.JobApplication, autoUpdate bool) (Result, error) {
	res := Result{Decision: u.Decide(app, event.Classification, autoUpdate)}
	if !res.Apply {
		if event.Label == types.LabelUpdate {
			log.Printf("[status] Update email %s for application %s: no status change", event.MessageID, app.ID)
		}
		return res, nil
	}

	eventID := event.ID
	change := types.StatusChange{
		From:         res.From,
		To:           res.To,
		ChangedAt:    u.now().UTC(),
		Source:       types.ChangeSourceEmail,
		EmailEventID: &eventID,
		Confidence:   event.Confidence,
	}

	var applied bool
	err := retry.Do(ctx, retry.Policy{Attempts: 2, Backoff: u.cfg.RetryBackoff, Label: "status update " + app.ID.String()},
		func(ctx context.Context) error {
			var err error
			applied, err = u.store.UpdateApplicationStatus(ctx, app.ID, res.From, res.To, change)
			return err
		})
	if err != nil {
		res.NeedsReview = true
		res.Reason = "status update could not be saved"
		return res, &PersistenceError{ApplicationID: app.ID, Message: "failed to update application status", Cause: err}
	}

	if !applied {
		res.NeedsReview = true
		res.Reason = fmt.Sprintf("application status changed from %s before the update was written", res.From)
		return res, nil
	}

	app.Status = res.To
	app.History = append(app.History, change)
	res.Updated = true
	log.Printf("[status] Application %s: %s -> %s (email %s, confidence %.2f)", app.ID, res.From, res.To, event.MessageID, event.Confidence)
	return res, nil
}
