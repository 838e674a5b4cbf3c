package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/job-tracker/internal/types"
)

// scoreEpsilon treats scores this close as equal
const scoreEpsilon = 1e-9

// Config tunes the matcher.
type Config struct {
	Weights    Weights
	MinScore   float64 // minimum total score for a match
	WindowDays int     // temporal decay window
}

// DefaultConfig returns the standard matcher settings.
func DefaultConfig() Config {
	return Config{
		Weights:    DefaultWeights(),
		MinScore:   0.5,
		WindowDays: 90,
	}
}

// Result is the score of one application against one email.
type Result struct {
	Application *types.JobApplication `json:"application"`
	Score       float64               `json:"score"`
	Company     float64               `json:"company_score"`
	Title       float64               `json:"title_score"`
	Temporal    float64               `json:"temporal_score"`
	Location    float64               `json:"location_score"`
	Notes       string                `json:"notes"`
}

// Matcher picks the application an email refers to. It is pure and safe for concurrent use.
type Matcher struct {
	cfg Config
}

// New creates a matcher, filling unset fields from DefaultConfig.
func New(cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = def.MinScore
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	return &Matcher{cfg: cfg}
}

// Rank scores every open application against the event, best first.
// Equal scores are ordered by most recent application date, then id.
func (m *Matcher) Rank(event *types.EmailEvent, apps []types.JobApplication, now time.Time) []Result {
	results := make([]Result, 0, len(apps))
	for i := range apps {
		app := &apps[i]
		if !app.IsOpen() {
			continue
		}
		results = append(results, m.score(event, app, now))
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if math.Abs(a.Score-b.Score) > scoreEpsilon {
			return a.Score > b.Score
		}
		if !a.Application.AppliedAt.Equal(b.Application.AppliedAt) {
			return a.Application.AppliedAt.After(b.Application.AppliedAt)
		}
		return a.Application.ID.String() < b.Application.ID.String()
	})
	return results
}

// Match returns the best application scoring at least MinScore.
// ok is false when the user has no open applications or none clears the threshold.
func (m *Matcher) Match(event *types.EmailEvent, apps []types.JobApplication, now time.Time) (Result, bool) {
	ranked := m.Rank(event, apps, now)
	if len(ranked) == 0 {
		return Result{}, false
	}
	best := ranked[0]
	if best.Score+scoreEpsilon < m.cfg.MinScore {
		return best, false
	}
	return best, true
}

func (m *Matcher) score(event *types.EmailEvent, app *types.JobApplication, now time.Time) Result {
	company := computeCompanyScore(event, app)
	title := computeTitleScore(event, app)
	temporal := computeTemporalScore(event, app, now, m.cfg.WindowDays)
	location := computeLocationScore(event, app)

	w := m.cfg.Weights
	total := w.Company*company + w.Title*title + w.Temporal*temporal + w.Location*location
	if total > 1.0 {
		total = 1.0
	}
	if total < 0.0 {
		total = 0.0
	}

	return Result{
		Application: app,
		Score:       total,
		Company:     company,
		Title:       title,
		Temporal:    temporal,
		Location:    location,
		Notes:       generateNotes(company, title, temporal, location),
	}
}

// generateNotes creates a brief explanation of a score.
func generateNotes(company, title, temporal, location float64) string {
	var parts []string

	switch {
	case company >= 0.9:
		parts = append(parts, "Company match")
	case company >= 0.6:
		parts = append(parts, fmt.Sprintf("Partial company match (%.2f)", company))
	default:
		parts = append(parts, "No company match")
	}

	switch {
	case title >= 0.9:
		parts = append(parts, "Title match")
	case title > 0:
		parts = append(parts, fmt.Sprintf("Partial title match (%.2f)", title))
	}

	if temporal == 0 {
		parts = append(parts, "Outside time window")
	}

	if location == 1.0 {
		parts = append(parts, "Location match")
	}

	return strings.Join(parts, ". ")
}
