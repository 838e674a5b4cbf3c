package types

import (
	"fmt"
	"strings"
)

// Label is the category assigned to an inbound email.
type Label string

// Classification labels
const (
	LabelConfirmation  Label = "confirmation"
	LabelRejection     Label = "rejection"
	LabelInterview     Label = "interview"
	LabelOffer         Label = "offer"
	LabelUpdate        Label = "update"
	LabelUnknown       Label = "unknown"
	LabelNotJobRelated Label = "not_job_related"
)

// AllLabels lists every label in a stable order.
var AllLabels = []Label{
	LabelConfirmation,
	LabelRejection,
	LabelInterview,
	LabelOffer,
	LabelUpdate,
	LabelUnknown,
	LabelNotJobRelated,
}

// labelAliases maps the long forms some model responses use onto labels.
var labelAliases = map[string]Label{
	"application_confirmation": LabelConfirmation,
	"application_rejection":    LabelRejection,
	"interview_invitation":     LabelInterview,
	"offer_letter":             LabelOffer,
	"status_update":            LabelUpdate,
	"not-job-related":          LabelNotJobRelated,
	"not_job":                  LabelNotJobRelated,
}

// ParseLabel converts a string into a Label.
func ParseLabel(s string) (Label, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, l := range AllLabels {
		if string(l) == normalized {
			return l, nil
		}
	}
	if l, ok := labelAliases[normalized]; ok {
		return l, nil
	}
	return LabelUnknown, fmt.Errorf("unknown classification label: %q", s)
}

// IsJobRelated reports whether emails with this label take part in matching.
func (l Label) IsJobRelated() bool {
	switch l {
	case LabelConfirmation, LabelRejection, LabelInterview, LabelOffer, LabelUpdate:
		return true
	default:
		return false
	}
}

// Sentiment is the tone of an email as judged by the classifier.
type Sentiment string

// Sentiment values
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment converts a string into a Sentiment, defaulting to neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// ClassificationSource records which stage produced a classification.
type ClassificationSource string

// Classification sources
const (
	SourceKeyword  ClassificationSource = "keyword"
	SourceLLM      ClassificationSource = "llm"
	SourceFallback ClassificationSource = "fallback"
)
