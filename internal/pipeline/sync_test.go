package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-tracker/internal/classify"
	"github.com/jonathan/job-tracker/internal/llm"
	"github.com/jonathan/job-tracker/internal/mail"
	"github.com/jonathan/job-tracker/internal/status"
	"github.com/jonathan/job-tracker/internal/types"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	userID     uuid.UUID
	store      *memStore
	provider   *fakeProvider
	classifier *scriptedClassifier
	svc        *Service
	acme       *types.JobApplication
	globex     *types.JobApplication
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userID := uuid.New()
	store := newMemStore()
	store.conns[userID] = &types.MailConnection{
		UserID:            userID,
		Provider:          types.ProviderGmail,
		IsAuthorized:      true,
		SyncEnabled:       true,
		AutoUpdateEnabled: true,
	}
	acme := store.addApp(types.JobApplication{
		UserID: userID, Company: "Acme", Title: "Backend Engineer",
		Status: types.StatusApplied, AppliedAt: base.AddDate(0, 0, -10),
	})
	globex := store.addApp(types.JobApplication{
		UserID: userID, Company: "Globex", Title: "Data Analyst",
		Status: types.StatusInterviewing, AppliedAt: base.AddDate(0, 0, -20),
	})

	provider := &fakeProvider{emails: []types.RawEmail{
		{MessageID: "m1", SenderEmail: "talent@acme.com", Subject: "Interview with Acme", Body: "Let's schedule a call.", ReceivedAt: base.AddDate(0, 0, -2)},
		{MessageID: "m2", SenderEmail: "jobs@globex.com", Subject: "Your Globex application", Body: "We went another way.", ReceivedAt: base.AddDate(0, 0, -1)},
		{MessageID: "m3", SenderEmail: "news@weekly.dev", Subject: "This week in Go", Body: "Generics, again.", ReceivedAt: base.AddDate(0, 0, -3)},
	}}

	classifier := &scriptedClassifier{results: map[string]types.Classification{
		"m1": {Label: types.LabelInterview, Confidence: 0.9, Company: "Acme", JobTitle: "Backend Engineer", Source: types.SourceLLM},
		"m2": {Label: types.LabelRejection, Confidence: 0.95, Company: "Globex", JobTitle: "Data Analyst", Source: types.SourceKeyword},
	}}

	cfg := DefaultConfig()
	cfg.FetchBackoff = time.Millisecond
	cfg.WriteBackoff = time.Millisecond
	cfg.Status.RetryBackoff = time.Millisecond

	svc := NewService(store, provider, classifier, cfg)
	svc.now = func() time.Time { return base }

	return &fixture{
		userID: userID, store: store, provider: provider, classifier: classifier,
		svc: svc, acme: acme, globex: globex,
	}
}

func assertInvariants(t *testing.T, s *types.SyncSummary) {
	t.Helper()
	assert.Equal(t, s.Fetched, s.Classified+s.SkippedDuplicates+s.Pending, "fetched = classified + skipped + pending")
	assert.LessOrEqual(t, s.Updated, s.Matched)
	assert.LessOrEqual(t, s.Matched, s.Classified)
}

func TestSyncUserEmails_ProcessesMailbox(t *testing.T) {
	f := newFixture(t)

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 0)

	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 7, summary.LookbackDays)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 3, summary.Classified)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, 0, summary.NeedsReview)
	assertInvariants(t, summary)

	assert.Equal(t, types.StatusInterviewing, f.store.app(f.acme.ID).Status)
	assert.Equal(t, types.StatusRejected, f.store.app(f.globex.ID).Status)
	require.Len(t, f.store.app(f.acme.ID).History, 1)
	assert.Equal(t, types.ChangeSourceEmail, f.store.app(f.acme.ID).History[0].Source)

	ev := f.store.eventByMessage(f.userID, "m1")
	require.NotNil(t, ev)
	require.NotNil(t, ev.MatchedApplicationID)
	assert.Equal(t, f.acme.ID, *ev.MatchedApplicationID)
	assert.True(t, ev.StatusUpdated)

	news := f.store.eventByMessage(f.userID, "m3")
	require.NotNil(t, news)
	assert.Nil(t, news.MatchedApplicationID)

	require.Len(t, f.store.runs, 1)
	assert.Equal(t, summary.ID, f.store.runs[0].ID)
	assert.Equal(t, 3, f.store.synced[f.userID])
}

func TestSyncUserEmails_OldestFirst(t *testing.T) {
	f := newFixture(t)
	f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, []string{"m3", "m1", "m2"}, f.classifier.calls())
}

func TestSyncUserEmails_SecondRunSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.svc.SyncUserEmails(context.Background(), f.userID, 7)

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 3, summary.SkippedDuplicates)
	assert.Equal(t, 0, summary.Classified)
	assertInvariants(t, summary)
	assert.Len(t, f.classifier.calls(), 3, "duplicates are never classified")
	assert.Len(t, f.store.events, 3)
}

func TestSyncUserEmails_DuplicateWithinBatch(t *testing.T) {
	f := newFixture(t)
	f.provider.emails = append(f.provider.emails, f.provider.emails[0])

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, 4, summary.Fetched)
	assert.Equal(t, 1, summary.SkippedDuplicates)
	assert.Equal(t, 3, summary.Classified)
	assertInvariants(t, summary)
}

func TestSyncUserEmails_AuthErrorAbortsWithoutEvents(t *testing.T) {
	f := newFixture(t)
	f.provider.checkErr = &mail.AuthError{Provider: "gmail", Message: "token revoked"}

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeAuthError, summary.Outcome)
	assert.Contains(t, summary.ErrorMessage, "token revoked")
	assert.Zero(t, summary.Fetched)
	assert.Empty(t, f.store.events)
	assert.Empty(t, f.classifier.calls())
	assert.Equal(t, 0, f.provider.fetchCalls)
	require.Len(t, f.store.runs, 1, "failed runs are recorded")
	_, marked := f.store.synced[f.userID]
	assert.False(t, marked)
}

func TestSyncUserEmails_RetriesTransientFetch(t *testing.T) {
	f := newFixture(t)
	f.provider.fetchErrs = []error{&mail.TransientProviderError{Provider: "gmail", Message: "503"}}

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 2, f.provider.fetchCalls)
	assert.Equal(t, 3, summary.Classified)
}

func TestSyncUserEmails_ConnectionError(t *testing.T) {
	f := newFixture(t)
	f.provider.fetchErrs = []error{errors.New("mailbox exploded")}

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeConnectionError, summary.Outcome)
	assert.Equal(t, 1, f.provider.fetchCalls, "non-transient errors are not retried")
	assert.Empty(t, f.store.events)
}

func TestSyncUserEmails_DedupeLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.store.existingErr = errors.New("db down")

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeConnectionError, summary.Outcome)
	assert.Equal(t, 3, summary.Pending)
	assertInvariants(t, summary)
	assert.Empty(t, f.classifier.calls())
}

func TestSyncUserEmails_CancelledBetweenEmails(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.classifier.after = func(messageID string) {
		if messageID == "m3" {
			cancel()
		}
	}

	summary := f.svc.SyncUserEmails(ctx, f.userID, 7)
	assert.Equal(t, types.OutcomeCancelled, summary.Outcome)
	assert.Equal(t, 1, summary.Classified)
	assert.Equal(t, 2, summary.Pending)
	assertInvariants(t, summary)

	assert.NotNil(t, f.store.eventByMessage(f.userID, "m3"), "email in flight completes")
	assert.Nil(t, f.store.eventByMessage(f.userID, "m1"))
	require.Len(t, f.store.runs, 1)
	assert.Equal(t, types.OutcomeCancelled, f.store.runs[0].Outcome)
}

func TestSyncUserEmails_PerEmailErrorsAreCounted(t *testing.T) {
	f := newFixture(t)
	f.store.failInsert["m2"] = true

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 3, summary.Classified)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Updated)
	assertInvariants(t, summary)
	assert.Equal(t, types.StatusInterviewing, f.globex.Status, "globex untouched")
	assert.Equal(t, types.StatusInterviewing, f.store.app(f.globex.ID).Status)
}

func TestSyncUserEmails_LowConfidenceNeedsReview(t *testing.T) {
	f := newFixture(t)
	c := f.classifier.results["m1"]
	c.Confidence = 0.6
	f.classifier.results["m1"] = c

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.NeedsReview)
	assert.Equal(t, types.StatusApplied, f.store.app(f.acme.ID).Status)

	ev := f.store.eventByMessage(f.userID, "m1")
	assert.True(t, ev.NeedsReview)
	assert.False(t, ev.StatusUpdated)
	assert.NotNil(t, ev.MatchedApplicationID, "match is still recorded")
}

func TestSyncUserEmails_StatusPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.store.statusFails = 2

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, types.StatusApplied, f.store.app(f.acme.ID).Status)
	assert.True(t, f.store.eventByMessage(f.userID, "m1").NeedsReview)
	assertInvariants(t, summary)
}

func TestSyncUserEmails_AutoUpdateDisabled(t *testing.T) {
	f := newFixture(t)
	f.store.conns[f.userID].AutoUpdateEnabled = false

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 2, summary.NeedsReview)
	assert.Equal(t, types.StatusApplied, f.store.app(f.acme.ID).Status)
}

func TestSyncUserEmails_MalformedApplicationIsDataError(t *testing.T) {
	f := newFixture(t)
	f.store.addApp(types.JobApplication{
		UserID: f.userID, Company: "Initech", Title: "QA Engineer",
		Status: "archived", AppliedAt: base.AddDate(0, 0, -5),
	})
	f.provider.emails = append(f.provider.emails, types.RawEmail{
		MessageID: "m4", SenderEmail: "hr@initech.com", Subject: "Initech update", Body: "Not moving forward.", ReceivedAt: base.Add(-time.Hour),
	})
	f.classifier.results["m4"] = types.Classification{Label: types.LabelRejection, Confidence: 0.95, Company: "Initech", JobTitle: "QA Engineer"}

	summary := f.svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 4, summary.Classified)
	assert.Equal(t, 2, summary.Updated)
	assert.True(t, f.store.eventByMessage(f.userID, "m4").NeedsReview)
	assertInvariants(t, summary)
}

func TestSyncUserEmails_EmitsProgress(t *testing.T) {
	f := newFixture(t)
	var events []ProgressEvent
	svc := f.svc.WithProgress(func(e ProgressEvent) { events = append(events, e) })

	summary := svc.SyncUserEmails(context.Background(), f.userID, 7)

	require.NotEmpty(t, events)
	assert.Equal(t, "start", events[0].Step)
	last := events[len(events)-1]
	assert.Equal(t, "complete", last.Step)
	assert.Equal(t, summary.ID.String(), last.RunID)

	var emailSteps int
	for _, e := range events {
		if e.Category == CategoryEmail {
			emailSteps++
		}
	}
	assert.Equal(t, 3, emailSteps)
}

func TestSyncUserEmails_KeywordPipeline(t *testing.T) {
	f := newFixture(t)
	f.provider.emails = []types.RawEmail{{
		MessageID:   "kw",
		SenderEmail: "jobs@globex.com",
		SenderName:  "Globex Recruiting",
		Subject:     "Your application to Globex",
		Body:        "We regret to inform you that we will not be moving forward with your application for the Data Analyst position.",
		ReceivedAt:  base.AddDate(0, 0, -1),
	}}
	svc := NewService(f.store, f.provider, classify.NewPipeline(nil, classify.DefaultConfig()), f.svc.Config())
	svc.now = func() time.Time { return base }

	summary := svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, types.StatusRejected, f.store.app(f.globex.ID).Status)

	ev := f.store.eventByMessage(f.userID, "kw")
	assert.Equal(t, types.SourceKeyword, ev.Source)
}

// quotaExceededLLM fails every request the way an exhausted API quota does.
type quotaExceededLLM struct{}

func (quotaExceededLLM) GenerateContent(context.Context, string, llm.ModelTier) (string, error) {
	return "", errors.New("quota exceeded")
}

func (quotaExceededLLM) GenerateJSON(context.Context, string, llm.ModelTier) (string, error) {
	return "", errors.New("quota exceeded")
}

func (quotaExceededLLM) GetModel(llm.ModelTier) string { return "fake" }
func (quotaExceededLLM) Close() error                  { return nil }

func TestSyncUserEmails_ModelFailureCountsAsError(t *testing.T) {
	f := newFixture(t)
	f.provider.emails = []types.RawEmail{{
		MessageID:   "q1",
		SenderEmail: "talent@acme.com",
		SenderName:  "Acme Talent",
		Subject:     "Acme follow-up",
		Body:        "Thanks for your time last week, here is a short note about what comes next for you.",
		ReceivedAt:  base.AddDate(0, 0, -1),
	}}
	model := classify.NewLLMClassifier(quotaExceededLLM{}, classify.LLMOptions{Attempts: 1, Backoff: time.Millisecond})
	svc := NewService(f.store, f.provider, classify.NewPipeline(model, classify.DefaultConfig()), f.svc.Config())
	svc.now = func() time.Time { return base }

	summary := svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 1, summary.Classified)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.NeedsReview)
	assert.Equal(t, 0, summary.Matched)
	assertInvariants(t, summary)

	ev := f.store.eventByMessage(f.userID, "q1")
	require.NotNil(t, ev)
	assert.True(t, ev.Failed)
	assert.Equal(t, types.LabelUnknown, ev.Label)
	assert.Equal(t, types.StatusApplied, f.store.app(f.acme.ID).Status)
}

func TestSyncUserEmails_UndecidableEmailIsNotAnError(t *testing.T) {
	f := newFixture(t)
	f.provider.emails = []types.RawEmail{{
		MessageID: "e1", SenderEmail: "talent@acme.com", Subject: "Interview invitation", Body: "", ReceivedAt: base.AddDate(0, 0, -1),
	}}
	model := classify.NewLLMClassifier(quotaExceededLLM{}, classify.LLMOptions{Attempts: 1, Backoff: time.Millisecond})
	svc := NewService(f.store, f.provider, classify.NewPipeline(model, classify.DefaultConfig()), f.svc.Config())
	svc.now = func() time.Time { return base }

	summary := svc.SyncUserEmails(context.Background(), f.userID, 7)
	assert.Equal(t, 1, summary.Classified)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, types.LabelUnknown, f.store.eventByMessage(f.userID, "e1").Label)
	assert.Equal(t, types.StatusApplied, f.store.app(f.acme.ID).Status)
}

func TestSortOldestFirst(t *testing.T) {
	emails := []types.RawEmail{
		{MessageID: "b", ReceivedAt: base},
		{MessageID: "c", ReceivedAt: base.Add(-time.Hour)},
		{MessageID: "a", ReceivedAt: base},
	}
	sortOldestFirst(emails)
	assert.Equal(t, "c", emails[0].MessageID)
	assert.Equal(t, "a", emails[1].MessageID)
	assert.Equal(t, "b", emails[2].MessageID)
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, "abc", messageKey(types.RawEmail{MessageID: " abc "}))

	e := types.RawEmail{SenderEmail: "A@b.com", Subject: "Hi", ReceivedAt: base}
	k := messageKey(e)
	assert.Contains(t, k, "digest-")
	e.SenderEmail = "a@b.com"
	assert.Equal(t, k, messageKey(e), "sender case does not change the key")
}

func TestStatusPersistenceErrorType(t *testing.T) {
	f := newFixture(t)
	f.store.statusFails = 2
	ev := f.svc.ClassifyEmail(context.Background(), f.userID, f.provider.emails[0])
	_, err := f.store.InsertEmailEvent(context.Background(), ev)
	require.NoError(t, err)

	_, err = f.svc.MatchAndUpdate(context.Background(), ev, f.userID)
	var perr *status.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, f.acme.ID, perr.ApplicationID)
}
