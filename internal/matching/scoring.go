// Package matching scores classified emails against a user's job applications.
package matching

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/jonathan/job-tracker/internal/textnorm"
	"github.com/jonathan/job-tracker/internal/types"
)

// Default weights for scoring components
const (
	companyWeight  = 0.4
	titleWeight    = 0.3
	temporalWeight = 0.2
	locationWeight = 0.1
)

const (
	containmentScore  = 0.9
	domainMatchScore  = 0.8
	titleMentionScore = 0.9
	tokenOverlapScale = 0.8

	// containment below this many characters is too weak a signal ("co" is in everything)
	minContainmentLen = 3
)

// Weights holds the relative weight of each sub-score. They should sum to 1.
type Weights struct {
	Company  float64 `json:"company" yaml:"company"`
	Title    float64 `json:"title" yaml:"title"`
	Temporal float64 `json:"temporal" yaml:"temporal"`
	Location float64 `json:"location" yaml:"location"`
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		Company:  companyWeight,
		Title:    titleWeight,
		Temporal: temporalWeight,
		Location: locationWeight,
	}
}

// similarity compares two normalised strings: exact 1.0, containment 0.9,
// otherwise the Levenshtein ratio.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= minContainmentLen && strings.Contains(" "+longer+" ", " "+shorter+" ") {
		return containmentScore
	}

	return levenshteinRatio(a, b)
}

// levenshteinRatio is 1 - distance / length of the longer string, in runes.
func levenshteinRatio(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0.0
	}
	ratio := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if ratio < 0 {
		return 0.0
	}
	return ratio
}

// computeCompanyScore compares the extracted company with the application's.
// Without an extracted company the sender domain is tried instead.
func computeCompanyScore(event *types.EmailEvent, app *types.JobApplication) float64 {
	appCompany := textnorm.NormalizeCompany(app.Company)
	if appCompany == "" {
		return 0.0
	}

	if eventCompany := textnorm.NormalizeCompany(event.Company); eventCompany != "" {
		return similarity(eventCompany, appCompany)
	}

	label := textnorm.DomainLabel(event.SenderEmail)
	if label == "" {
		return 0.0
	}
	compact := strings.ReplaceAll(appCompany, " ", "")
	if label == compact || (len(label) >= minContainmentLen && strings.HasPrefix(compact, label)) {
		return domainMatchScore
	}
	return 0.0
}

// computeTitleScore compares titles and credits the application title being
// mentioned verbatim in the email.
func computeTitleScore(event *types.EmailEvent, app *types.JobApplication) float64 {
	appTitle := textnorm.NormalizeText(app.Title)
	if appTitle == "" {
		return 0.0
	}

	score := 0.0
	if eventTitle := textnorm.NormalizeText(event.JobTitle); eventTitle != "" {
		score = similarity(eventTitle, appTitle)
		if overlap := tokenOverlap(eventTitle, appTitle) * tokenOverlapScale; overlap > score {
			score = overlap
		}
	}

	text := " " + textnorm.NormalizeText(event.Subject+" "+event.Body) + " "
	if strings.Contains(text, " "+appTitle+" ") && titleMentionScore > score {
		score = titleMentionScore
	}
	return score
}

// tokenOverlap is the Jaccard index of the token sets.
func tokenOverlap(a, b string) float64 {
	ta, tb := textnorm.Tokens(a), textnorm.Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	shared := 0
	for _, t := range tb {
		if set[t] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// computeTemporalScore decays linearly from 1.0 on the application date to 0.0
// at the end of the window. Emails that predate the application by more than a
// day score 0.
func computeTemporalScore(event *types.EmailEvent, app *types.JobApplication, now time.Time, windowDays int) float64 {
	if app.AppliedAt.IsZero() || windowDays <= 0 {
		return 0.0
	}

	at := event.ReceivedAt
	if at.IsZero() {
		at = now
	}

	days := at.Sub(app.AppliedAt).Hours() / 24
	if days < -1 {
		return 0.0
	}
	if days < 0 {
		days = 0
	}

	score := 1.0 - days/float64(windowDays)
	if score < 0 {
		score = 0
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// computeLocationScore is 1.0 when the locations are equal or one contains the
// other, or when the application's location appears in the email.
func computeLocationScore(event *types.EmailEvent, app *types.JobApplication) float64 {
	appLocation := textnorm.NormalizeText(app.Location)
	if appLocation == "" {
		return 0.0
	}

	if eventLocation := textnorm.NormalizeText(event.Location); eventLocation != "" {
		if eventLocation == appLocation ||
			strings.Contains(eventLocation, appLocation) ||
			strings.Contains(appLocation, eventLocation) {
			return 1.0
		}
	}

	text := " " + textnorm.NormalizeText(event.Subject+" "+event.Body) + " "
	if strings.Contains(text, " "+appLocation+" ") {
		return 1.0
	}
	return 0.0
}
