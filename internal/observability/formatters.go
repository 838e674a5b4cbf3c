// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/job-tracker/internal/matching"
	"github.com/jonathan/job-tracker/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to n runes, marking the cut with "..."
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintSyncSummary outputs the counters of one sync run.
func (p *Printer) PrintSyncSummary(s *types.SyncSummary) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("User:       %s\n", s.UserID))
	sb.WriteString(fmt.Sprintf("Outcome:    %s\n", s.Outcome))
	sb.WriteString(fmt.Sprintf("Lookback:   %d days\n", s.LookbackDays))
	if !s.FinishedAt.IsZero() && !s.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration:   %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Fetched:      %d\n", s.Fetched))
	sb.WriteString(fmt.Sprintf("Duplicates:   %d\n", s.SkippedDuplicates))
	sb.WriteString(fmt.Sprintf("Classified:   %d\n", s.Classified))
	sb.WriteString(fmt.Sprintf("Matched:      %d\n", s.Matched))
	sb.WriteString(fmt.Sprintf("Updated:      %d\n", s.Updated))
	sb.WriteString(fmt.Sprintf("Needs review: %d\n", s.NeedsReview))
	sb.WriteString(fmt.Sprintf("Errors:       %d", s.Errors))
	if s.Pending > 0 {
		sb.WriteString(fmt.Sprintf("\nPending:      %d", s.Pending))
	}
	if s.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("\n\n⚠ %s", s.ErrorMessage))
	}

	p.printBox("SYNC SUMMARY", sb.String())
}

// PrintClassification outputs the classification of a single email.
func (p *Printer) PrintClassification(e *types.EmailEvent) {
	if e == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Subject:    %s\n", e.Subject))
	sb.WriteString(fmt.Sprintf("From:       %s\n", e.SenderEmail))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Label:      %s\n", e.Label))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f (%s)\n", e.Confidence, e.Source))
	sb.WriteString(fmt.Sprintf("Sentiment:  %s\n", e.Sentiment))
	if e.Company != "" {
		sb.WriteString(fmt.Sprintf("Company:    %s\n", e.Company))
	}
	if e.JobTitle != "" {
		sb.WriteString(fmt.Sprintf("Title:      %s\n", e.JobTitle))
	}
	if e.Location != "" {
		sb.WriteString(fmt.Sprintf("Location:   %s\n", e.Location))
	}
	if e.NeedsReview {
		sb.WriteString("\n⚠ needs review\n")
	}
	if e.Reason != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", e.Reason))
	}

	p.printBox("EMAIL CLASSIFICATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMatchCandidates outputs the best-scoring applications for an email.
func (p *Printer) PrintMatchCandidates(results []matching.Result) {
	if len(results) == 0 {
		p.printBox("MATCH CANDIDATES", "No open applications to match")
		return
	}

	var sb strings.Builder
	count := min(len(results), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := results[i]
		sb.WriteString(fmt.Sprintf("#%d  %s / %s\n", i+1, r.Application.Company, r.Application.Title))
		sb.WriteString(fmt.Sprintf("    Score: %.2f (co %.2f, title %.2f, time %.2f, loc %.2f)\n",
			r.Score, r.Company, r.Title, r.Temporal, r.Location))
		if r.Notes != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", r.Notes))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(results) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(results)-maxItemsToShow))
	}

	p.printBox("MATCH CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintApplications outputs a compact list of applications.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintApplications(apps []types.JobApplication) {
	if len(apps) == 0 {
		fmt.Fprintln(p.out, "No applications found")
		return
	}

	var sb strings.Builder
	for i, app := range apps {
		sb.WriteString(fmt.Sprintf("%-12s %s / %s\n", app.Status, app.Company, app.Title))
		sb.WriteString(fmt.Sprintf("             id %s\n", app.ID))
		sb.WriteString(fmt.Sprintf("             applied %s", app.AppliedAt.Format("2006-01-02")))
		if i < len(apps)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("APPLICATIONS (%d)", len(apps)), sb.String())
}
