package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-tracker/internal/types"
)

func TestKeywordFilter_Match(t *testing.T) {
	f := NewKeywordFilter(0.95)

	tests := []struct {
		name      string
		subject   string
		body      string
		wantOK    bool
		wantLabel types.Label
		ambiguous bool
	}{
		{"rejection", "Update", "We regret to inform you...", true, types.LabelRejection, false},
		{"offer", "", "We are PLEASED TO OFFER you the position", true, types.LabelOffer, false},
		{"interview", "Interview invitation", "", true, types.LabelInterview, false},
		{"confirmation", "Thank you for applying!", "", true, types.LabelConfirmation, false},
		{"decisive beats confirmation", "Thank you for applying", "Unfortunately we are not moving forward.", true, types.LabelRejection, false},
		{"phrase across line break", "", "we regret\n   to inform you", true, types.LabelRejection, false},
		{"two decisive labels", "", "regret to inform you... we'd like to schedule an interview", true, "", true},
		{"no match", "Lunch?", "Are you free on Friday?", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := f.Match(tt.subject, tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.ambiguous, m.Ambiguous)
			if !tt.ambiguous {
				assert.Equal(t, tt.wantLabel, m.Label)
			}
		})
	}
}

func TestKeywordFilter_AmbiguousListsLabels(t *testing.T) {
	m, ok := NewKeywordFilter(0.95).Match("", "pleased to offer... regret to inform")
	assert.True(t, ok)
	assert.True(t, m.Ambiguous)
	assert.Equal(t, []types.Label{types.LabelOffer, types.LabelRejection}, m.Labels)
}

func TestSentimentFor(t *testing.T) {
	assert.Equal(t, types.SentimentNegative, sentimentFor(types.LabelRejection))
	assert.Equal(t, types.SentimentPositive, sentimentFor(types.LabelOffer))
	assert.Equal(t, types.SentimentNeutral, sentimentFor(types.LabelConfirmation))
}

func TestExtractors(t *testing.T) {
	raw := types.RawEmail{
		SenderEmail: "no-reply@greenhouse.io",
		SenderName:  "Globex Hiring Team via Greenhouse",
		Subject:     "Thank you for your application for the Site Reliability Engineer role",
		Body:        "The team is based in San Francisco, CA and will review your profile.",
	}

	assert.Equal(t, "Site Reliability Engineer", extractTitle(raw))
	assert.Equal(t, "San Francisco, CA", extractLocation(raw))
	assert.Equal(t, "Globex", extractCompany(raw))

	raw.SenderName = ""
	assert.Equal(t, "", extractCompany(raw), "ATS domain is not an employer")

	raw.SenderEmail = "careers@initech.com"
	assert.Equal(t, "initech", extractCompany(raw))
}
