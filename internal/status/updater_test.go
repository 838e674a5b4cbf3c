package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-tracker/internal/types"
)

type fakeStore struct {
	calls    int
	failures int  // number of calls that fail before succeeding
	conflict bool // report that the guard did not hold
	changes  []types.StatusChange
}

func (f *fakeStore) UpdateApplicationStatus(_ context.Context, _ uuid.UUID, _, _ types.Status, change types.StatusChange) (bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return false, errors.New("connection reset")
	}
	if f.conflict {
		return false, nil
	}
	f.changes = append(f.changes, change)
	return true, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func matched(label types.Label, confidence float64) *types.EmailEvent {
	return &types.EmailEvent{
		ID:        uuid.New(),
		MessageID: "msg-1",
		Classification: types.Classification{
			Label:      label,
			Confidence: confidence,
		},
	}
}

func application(status types.Status) *types.JobApplication {
	return &types.JobApplication{ID: uuid.New(), Company: "Acme", Title: "Engineer", Status: status}
}

func TestTargetStatus(t *testing.T) {
	tests := []struct {
		label  types.Label
		target types.Status
		ok     bool
	}{
		{types.LabelConfirmation, types.StatusApplied, true},
		{types.LabelInterview, types.StatusInterviewing, true},
		{types.LabelRejection, types.StatusRejected, true},
		{types.LabelOffer, types.StatusOffer, true},
		{types.LabelUpdate, "", false},
		{types.LabelUnknown, "", false},
		{types.LabelNotJobRelated, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.label), func(t *testing.T) {
			target, ok := TargetStatus(tt.label, types.StatusOffer)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.target, target)
		})
	}

	target, _ := TargetStatus(types.LabelOffer, types.StatusHired)
	assert.Equal(t, types.StatusHired, target)
}

func TestDecide(t *testing.T) {
	u := NewUpdater(nil, testConfig())

	tests := []struct {
		name        string
		current     types.Status
		label       types.Label
		confidence  float64
		autoUpdate  bool
		apply       bool
		needsReview bool
	}{
		{"interview from applied", types.StatusApplied, types.LabelInterview, 0.9, true, true, false},
		{"rejection from interviewing", types.StatusInterviewing, types.LabelRejection, 0.95, true, true, false},
		{"offer from interviewing", types.StatusInterviewing, types.LabelOffer, 0.8, true, true, false},
		{"confirmation from interested", types.StatusInterested, types.LabelConfirmation, 0.95, true, true, false},
		{"at threshold", types.StatusApplied, types.LabelInterview, 0.7, true, true, false},
		{"below threshold", types.StatusApplied, types.LabelInterview, 0.65, true, false, true},
		{"auto update disabled", types.StatusApplied, types.LabelInterview, 0.9, false, false, true},
		{"terminal rejected", types.StatusRejected, types.LabelOffer, 0.99, true, false, false},
		{"terminal hired", types.StatusHired, types.LabelRejection, 0.99, true, false, false},
		{"same status", types.StatusInterviewing, types.LabelInterview, 0.9, true, false, false},
		{"regression", types.StatusInterviewing, types.LabelConfirmation, 0.95, true, false, false},
		{"update label", types.StatusApplied, types.LabelUpdate, 0.9, true, false, false},
		{"unknown label", types.StatusApplied, types.LabelUnknown, 0.0, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := u.Decide(application(tt.current), matched(tt.label, tt.confidence).Classification, tt.autoUpdate)
			assert.Equal(t, tt.apply, d.Apply, d.Reason)
			assert.Equal(t, tt.needsReview, d.NeedsReview, d.Reason)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestApply_AppendsHistory(t *testing.T) {
	store := &fakeStore{}
	u := NewUpdater(store, testConfig())
	ev := matched(types.LabelInterview, 0.9)
	app := application(types.StatusApplied)

	res, err := u.Apply(context.Background(), ev, app, true)
	require.NoError(t, err)

	assert.True(t, res.Updated)
	assert.Equal(t, types.StatusInterviewing, app.Status)
	require.Len(t, app.History, 1)
	assert.Equal(t, types.StatusApplied, app.History[0].From)
	assert.Equal(t, types.StatusInterviewing, app.History[0].To)
	assert.Equal(t, types.ChangeSourceEmail, app.History[0].Source)
	assert.Equal(t, ev.ID, *app.History[0].EmailEventID)
	assert.InDelta(t, 0.9, app.History[0].Confidence, 1e-9)
	assert.Len(t, store.changes, 1)
}

func TestApply_SubThresholdDoesNotWrite(t *testing.T) {
	store := &fakeStore{}
	u := NewUpdater(store, testConfig())
	app := application(types.StatusApplied)

	res, err := u.Apply(context.Background(), matched(types.LabelRejection, 0.5), app, true)
	require.NoError(t, err)

	assert.False(t, res.Updated)
	assert.True(t, res.NeedsReview)
	assert.Equal(t, 0, store.calls)
	assert.Equal(t, types.StatusApplied, app.Status)
	assert.Empty(t, app.History)
}

func TestApply_RetriesOnceThenSucceeds(t *testing.T) {
	store := &fakeStore{failures: 1}
	u := NewUpdater(store, testConfig())

	res, err := u.Apply(context.Background(), matched(types.LabelRejection, 0.95), application(types.StatusApplied), true)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, 2, store.calls)
}

func TestApply_PersistenceError(t *testing.T) {
	store := &fakeStore{failures: 5}
	u := NewUpdater(store, testConfig())
	app := application(types.StatusApplied)

	res, err := u.Apply(context.Background(), matched(types.LabelRejection, 0.95), app, true)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, app.ID, perr.ApplicationID)
	assert.Equal(t, 2, store.calls)
	assert.False(t, res.Updated)
	assert.True(t, res.NeedsReview)
	assert.Equal(t, types.StatusApplied, app.Status)
}

func TestApply_GuardConflict(t *testing.T) {
	store := &fakeStore{conflict: true}
	u := NewUpdater(store, testConfig())

	res, err := u.Apply(context.Background(), matched(types.LabelOffer, 0.95), application(types.StatusInterviewing), true)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.True(t, res.NeedsReview)
}
