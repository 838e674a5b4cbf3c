package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-tracker/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(schema), v)
	require.NoError(t, s.Close())

	// reopening an up-to-date file is a no-op
	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	v, err = s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(schema), v)
}

func TestApplications_StatusGuard(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	app := &types.JobApplication{UserID: userID, Company: "Acme", Title: "Backend Engineer", AppliedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateApplication(ctx, app))
	assert.Equal(t, types.StatusApplied, app.Status)

	change := types.StatusChange{From: types.StatusApplied, To: types.StatusInterviewing, ChangedAt: time.Now().UTC(), Source: types.ChangeSourceEmail, Confidence: 0.9}
	ok, err := s.UpdateApplicationStatus(ctx, app.ID, types.StatusApplied, types.StatusInterviewing, change)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateApplicationStatus(ctx, app.ID, types.StatusApplied, types.StatusRejected, change)
	require.NoError(t, err)
	assert.False(t, ok, "stale expected status must not write")

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.StatusInterviewing, got.Status)
	require.Len(t, got.History, 1)
	assert.Equal(t, types.StatusApplied, got.History[0].From)
	assert.Equal(t, types.StatusInterviewing, got.History[0].To)
	assert.True(t, got.AppliedAt.Equal(app.AppliedAt))

	updated, err := s.SetApplicationStatus(ctx, app.ID, types.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, updated.Status)
	require.Len(t, updated.History, 2)
	assert.Equal(t, types.ChangeSourceManual, updated.History[1].Source)

	open, err := s.ListOpenApplications(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := s.ListApplications(ctx, types.ApplicationFilter{UserID: userID, Status: types.StatusRejected})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	missing, err := s.GetApplication(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEmailEvents_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	app := &types.JobApplication{UserID: userID, Company: "Acme", Title: "Backend Engineer"}
	require.NoError(t, s.CreateApplication(ctx, app))

	received := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	raw := types.RawEmail{MessageID: "m1", SenderEmail: "jobs@acme.com", Subject: "Interview", Body: "Let's talk", ReceivedAt: received}
	ev := types.NewEmailEvent(userID, raw, types.Classification{Label: types.LabelInterview, Confidence: 0.9, Source: types.SourceLLM, Sentiment: types.SentimentPositive, Company: "Acme"}, 0.7, received)

	inserted, err := s.InsertEmailEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *ev
	dup.ID = uuid.New()
	inserted, err = s.InsertEmailEvent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	// same message id for another user is not a duplicate
	other := *ev
	other.ID = uuid.New()
	other.UserID = uuid.New()
	inserted, err = s.InsertEmailEvent(ctx, &other)
	require.NoError(t, err)
	assert.True(t, inserted)

	existing, err := s.ExistingMessageIDs(ctx, userID, []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true}, existing)

	empty, err := s.ExistingMessageIDs(ctx, userID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	score := 0.82
	ev.MatchedApplicationID = &app.ID
	ev.MatchScore = &score
	ev.StatusUpdated = true
	require.NoError(t, s.UpdateEmailEvent(ctx, ev))

	got, err := s.GetEmailEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, types.LabelInterview, got.Label)
	assert.True(t, got.ReceivedAt.Equal(received))
	require.NotNil(t, got.MatchedApplicationID)
	assert.Equal(t, app.ID, *got.MatchedApplicationID)
	require.NotNil(t, got.MatchScore)
	assert.InDelta(t, 0.82, *got.MatchScore, 1e-9)
	assert.True(t, got.StatusUpdated)

	ev.NeedsReview = true
	require.NoError(t, s.UpdateEmailEvent(ctx, ev))
	review := true
	list, err := s.ListEmailEvents(ctx, types.EventFilter{UserID: userID, NeedsReview: &review})
	require.NoError(t, err)
	require.Len(t, list, 1)

	label := types.LabelRejection
	reviewed, err := s.MarkEventReviewed(ctx, ev.ID, &label)
	require.NoError(t, err)
	require.NotNil(t, reviewed)
	assert.True(t, reviewed.UserReviewed)
	assert.False(t, reviewed.NeedsReview)
	assert.Equal(t, types.LabelRejection, reviewed.Label)

	kept, err := s.MarkEventReviewed(ctx, ev.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.LabelRejection, kept.Label, "nil label keeps the current one")

	none, err := s.MarkEventReviewed(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	summary, err := s.GetEmailSummary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalProcessed)
	assert.Equal(t, 1, summary.ByLabel[types.LabelRejection])
	assert.Equal(t, 1, summary.StatusUpdates)
	assert.Equal(t, 0, summary.NeedsReview)
}

func TestConnectionsAndSyncRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	conn := &types.MailConnection{UserID: userID, Provider: types.ProviderGmail, SealedToken: []byte("sealed"), IsAuthorized: true, SyncEnabled: true, AutoUpdateEnabled: true}
	require.NoError(t, s.UpsertMailConnection(ctx, conn))

	conn.SealedToken = nil
	conn.AccountEmail = "jane@example.com"
	require.NoError(t, s.UpsertMailConnection(ctx, conn))

	got, err := s.GetMailConnection(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("sealed"), got.SealedToken)
	assert.Equal(t, "jane@example.com", got.AccountEmail)
	assert.Nil(t, got.LastSyncAt)

	require.NoError(t, s.UpdateMailToken(ctx, userID, []byte("rotated")))

	conns, err := s.ListSyncableConnections(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, []byte("rotated"), conns[0].SealedToken)

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkSynced(ctx, userID, at, 4))
	require.NoError(t, s.MarkSynced(ctx, userID, at, 2))
	require.NoError(t, s.SetConnectionAuthorized(ctx, userID, false))

	got, err = s.GetMailConnection(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.TotalEmailsProcessed)
	assert.False(t, got.IsAuthorized)
	require.NotNil(t, got.LastSyncAt)
	assert.True(t, got.LastSyncAt.Equal(at))

	conns, err = s.ListSyncableConnections(ctx)
	require.NoError(t, err)
	assert.Empty(t, conns)

	run := &types.SyncSummary{ID: uuid.New(), UserID: userID, LookbackDays: 7, StartedAt: at, FinishedAt: at.Add(time.Minute), Outcome: types.OutcomeCompleted, Fetched: 3, Classified: 3}
	require.NoError(t, s.RecordSyncRun(ctx, run))
	require.NoError(t, s.RecordSyncRun(ctx, run), "recording the same run twice is a no-op")

	runs, err := s.ListSyncRuns(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.OutcomeCompleted, runs[0].Outcome)
	assert.Equal(t, 3, runs[0].Fetched)

	require.NoError(t, s.DeleteMailConnection(ctx, userID))
	missing, err := s.GetMailConnection(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
