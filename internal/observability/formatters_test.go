package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-tracker/internal/matching"
	"github.com/jonathan/job-tracker/internal/types"
)

func TestPrintSyncSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p.PrintSyncSummary(&types.SyncSummary{
		UserID:       uuid.New(),
		Outcome:      types.OutcomeCancelled,
		LookbackDays: 7,
		StartedAt:    start,
		FinishedAt:   start.Add(3 * time.Second),
		Fetched:      5,
		Classified:   3,
		Matched:      2,
		Updated:      1,
		Pending:      2,
		ErrorMessage: "context canceled",
	})
	output := buf.String()

	assert.Contains(t, output, "SYNC SUMMARY")
	assert.Contains(t, output, "cancelled")
	assert.Contains(t, output, "Fetched:      5")
	assert.Contains(t, output, "Pending:      2")
	assert.Contains(t, output, "context canceled")
}

func TestPrintSyncSummary_NoPendingLine(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSyncSummary(&types.SyncSummary{Outcome: types.OutcomeCompleted})
	assert.NotContains(t, buf.String(), "Pending")
}

func TestPrintSyncSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSyncSummary(nil)
	assert.Empty(t, buf.String())
}

func TestPrintClassification(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintClassification(&types.EmailEvent{
		Subject:     "Interview invitation",
		SenderEmail: "jobs@acme.com",
		Classification: types.Classification{
			Label:      types.LabelInterview,
			Confidence: 0.92,
			Company:    "Acme",
			JobTitle:   "Backend Engineer",
			Sentiment:  types.SentimentPositive,
			Source:     types.SourceLLM,
		},
		NeedsReview: true,
	})
	output := buf.String()

	assert.Contains(t, output, "EMAIL CLASSIFICATION")
	assert.Contains(t, output, "interview")
	assert.Contains(t, output, "0.92")
	assert.Contains(t, output, "Backend Engineer")
	assert.Contains(t, output, "needs review")
	assert.NotContains(t, output, "Location:")
}

func TestPrintMatchCandidates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var results []matching.Result
	for i := 0; i < 7; i++ {
		results = append(results, matching.Result{
			Application: &types.JobApplication{Company: "Acme", Title: "Engineer"},
			Score:       0.9 - float64(i)*0.1,
			Notes:       "company match",
		})
	}
	p.PrintMatchCandidates(results)
	output := buf.String()

	assert.Contains(t, output, "#1  Acme / Engineer")
	assert.Contains(t, output, "#5")
	assert.NotContains(t, output, "#6")
	assert.Contains(t, output, "... and 2 more")
}

func TestPrintMatchCandidates_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintMatchCandidates(nil)
	assert.Contains(t, buf.String(), "No open applications")
}

func TestPrintApplications(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	acmeID := uuid.New()
	p.PrintApplications([]types.JobApplication{
		{ID: acmeID, Company: "Acme", Title: "Backend Engineer", Status: types.StatusApplied, AppliedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), Company: "Globex", Title: "Data Analyst", Status: types.StatusInterviewing, AppliedAt: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)},
	})
	output := buf.String()

	assert.Contains(t, output, "APPLICATIONS (2)")
	assert.Contains(t, output, acmeID.String())
	assert.Contains(t, output, "applied 2026-03-01")
	assert.Contains(t, output, "applied 2026-02-20")
	assert.Contains(t, output, "interviewing")
	assert.NotContains(t, output, "...", "no line is clipped")

	buf.Reset()
	p.PrintApplications(nil)
	assert.Equal(t, "No applications found\n", buf.String())
}

func TestPrintBox_ClipsLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}
