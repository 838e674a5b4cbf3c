package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/types"
)

// memStore is an in-memory Store.
type memStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*types.EmailEvent
	apps   map[uuid.UUID]*types.JobApplication
	conns  map[uuid.UUID]*types.MailConnection
	runs   []types.SyncSummary
	synced map[uuid.UUID]int

	failInsert   map[string]bool
	statusFails  int
	existingErr  error
	statusWrites int
}

func newMemStore() *memStore {
	return &memStore{
		events:     make(map[uuid.UUID]*types.EmailEvent),
		apps:       make(map[uuid.UUID]*types.JobApplication),
		conns:      make(map[uuid.UUID]*types.MailConnection),
		synced:     make(map[uuid.UUID]int),
		failInsert: make(map[string]bool),
	}
}

func (m *memStore) addApp(app types.JobApplication) *types.JobApplication {
	m.mu.Lock()
	defer m.mu.Unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	m.apps[app.ID] = &app
	return &app
}

func (m *memStore) app(id uuid.UUID) types.JobApplication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.apps[id]
}

func (m *memStore) eventByMessage(userID uuid.UUID, messageID string) *types.EmailEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.UserID == userID && e.MessageID == messageID {
			cp := *e
			return &cp
		}
	}
	return nil
}

func (m *memStore) UpdateApplicationStatus(_ context.Context, appID uuid.UUID, from, to types.Status, change types.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusWrites++
	if m.statusFails > 0 {
		m.statusFails--
		return false, errors.New("connection reset")
	}
	app, ok := m.apps[appID]
	if !ok || app.Status != from {
		return false, nil
	}
	app.Status = to
	app.History = append(app.History, change)
	return true, nil
}

func (m *memStore) ExistingMessageIDs(_ context.Context, userID uuid.UUID, messageIDs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existingErr != nil {
		return nil, m.existingErr
	}
	want := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = true
	}
	out := make(map[string]bool)
	for _, e := range m.events {
		if e.UserID == userID && want[e.MessageID] {
			out[e.MessageID] = true
		}
	}
	return out, nil
}

func (m *memStore) InsertEmailEvent(_ context.Context, event *types.EmailEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert[event.MessageID] {
		return false, errors.New("disk full")
	}
	for _, e := range m.events {
		if e.UserID == event.UserID && e.MessageID == event.MessageID {
			return false, nil
		}
	}
	cp := *event
	m.events[event.ID] = &cp
	return true, nil
}

func (m *memStore) UpdateEmailEvent(_ context.Context, event *types.EmailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; !ok {
		return errors.New("no such event")
	}
	cp := *event
	m.events[event.ID] = &cp
	return nil
}

func (m *memStore) GetEmailEvent(_ context.Context, id uuid.UUID) (*types.EmailEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListOpenApplications(_ context.Context, userID uuid.UUID) ([]types.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.JobApplication
	for _, a := range m.apps {
		if a.UserID == userID && a.IsOpen() {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}

func (m *memStore) GetMailConnection(_ context.Context, userID uuid.UUID) (*types.MailConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) RecordSyncRun(_ context.Context, summary *types.SyncSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *summary)
	return nil
}

func (m *memStore) MarkSynced(_ context.Context, userID uuid.UUID, _ time.Time, processed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced[userID] += processed
	return nil
}

// fakeProvider serves a fixed mailbox.
type fakeProvider struct {
	emails     []types.RawEmail
	checkErr   error
	fetchErrs  []error // returned in order before succeeding
	fetchCalls int
}

func (f *fakeProvider) CheckConnection(context.Context, uuid.UUID) error {
	return f.checkErr
}

func (f *fakeProvider) FetchCandidateEmails(_ context.Context, _ uuid.UUID, since time.Time) ([]types.RawEmail, error) {
	f.fetchCalls++
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var out []types.RawEmail
	for _, e := range f.emails {
		if !e.ReceivedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// scriptedClassifier returns a canned classification per message id.
type scriptedClassifier struct {
	mu      sync.Mutex
	results map[string]types.Classification
	seen    []string
	after   func(messageID string)
}

func (c *scriptedClassifier) Classify(_ context.Context, raw types.RawEmail) (types.Classification, error) {
	c.mu.Lock()
	c.seen = append(c.seen, raw.MessageID)
	res, ok := c.results[raw.MessageID]
	after := c.after
	c.mu.Unlock()

	if after != nil {
		after(raw.MessageID)
	}
	if !ok {
		return types.Classification{Label: types.LabelNotJobRelated, Confidence: 0.9, Source: types.SourceLLM}, nil
	}
	return res, nil
}

func (c *scriptedClassifier) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}
