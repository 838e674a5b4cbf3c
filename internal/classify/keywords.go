package classify

import (
	"sort"
	"strings"

	"github.com/jonathan/job-tracker/internal/textnorm"
	"github.com/jonathan/job-tracker/internal/types"
)

type keywordRule struct {
	label    types.Label
	phrases  []string
	decisive bool // confirmation phrases also appear inside rejections and offers
}

// defaultRules are matched against the lower-cased subject and body.
var defaultRules = []keywordRule{
	{
		label:    types.LabelRejection,
		decisive: true,
		phrases: []string{
			"regret to inform",
			"not be moving forward",
			"not moving forward",
			"decided to move forward with other candidates",
			"decided to pursue other candidates",
			"decided not to proceed",
			"will not be proceeding",
			"position has been filled",
			"unable to offer you",
			"not been selected",
			"were not selected",
		},
	},
	{
		label:    types.LabelOffer,
		decisive: true,
		phrases: []string{
			"pleased to offer",
			"excited to offer you",
			"happy to offer you",
			"offer of employment",
			"extend an offer",
			"extend you an offer",
			"your offer letter",
		},
	},
	{
		label:    types.LabelInterview,
		decisive: true,
		phrases: []string{
			"schedule an interview",
			"invite you to interview",
			"invitation to interview",
			"interview invitation",
			"availability for an interview",
			"next round of interviews",
			"schedule a phone screen",
			"like to schedule a call",
		},
	},
	{
		label: types.LabelConfirmation,
		phrases: []string{
			"thank you for applying",
			"thanks for applying",
			"application has been received",
			"received your application",
			"application was received",
			"application has been submitted",
			"thank you for your application",
		},
	},
}

// KeywordFilter is the deterministic pre-filter run before any model call.
type KeywordFilter struct {
	rules      []keywordRule
	confidence float64
}

// KeywordMatch is the outcome of a pre-filter pass.
type KeywordMatch struct {
	Label     types.Label
	Phrase    string
	Ambiguous bool          // decisive phrases of more than one label matched
	Labels    []types.Label // every label that matched, sorted
}

// NewKeywordFilter builds a filter that reports the given confidence on an unambiguous match.
func NewKeywordFilter(confidence float64) *KeywordFilter {
	return &KeywordFilter{rules: defaultRules, confidence: confidence}
}

// Confidence is the score assigned to unambiguous matches.
func (f *KeywordFilter) Confidence() float64 {
	return f.confidence
}

// Match scans subject and body. ok is false when nothing matched.
// A decisive label outranks a confirmation phrase in the same email;
// two different decisive labels make the match ambiguous.
func (f *KeywordFilter) Match(subject, body string) (KeywordMatch, bool) {
	text := strings.ToLower(textnorm.CollapseWhitespace(subject + "\n" + body))

	matched := make(map[types.Label]string)
	var decisive []types.Label
	for _, rule := range f.rules {
		for _, phrase := range rule.phrases {
			if strings.Contains(text, phrase) {
				matched[rule.label] = phrase
				if rule.decisive {
					decisive = append(decisive, rule.label)
				}
				break
			}
		}
	}
	if len(matched) == 0 {
		return KeywordMatch{}, false
	}

	labels := make([]types.Label, 0, len(matched))
	for l := range matched {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	switch {
	case len(decisive) > 1:
		return KeywordMatch{Ambiguous: true, Labels: labels}, true
	case len(decisive) == 1:
		return KeywordMatch{Label: decisive[0], Phrase: matched[decisive[0]], Labels: labels}, true
	default:
		return KeywordMatch{Label: types.LabelConfirmation, Phrase: matched[types.LabelConfirmation], Labels: labels}, true
	}
}

// sentimentFor maps a label onto the tone a keyword match implies.
func sentimentFor(label types.Label) types.Sentiment {
	switch label {
	case types.LabelRejection:
		return types.SentimentNegative
	case types.LabelOffer, types.LabelInterview:
		return types.SentimentPositive
	default:
		return types.SentimentNeutral
	}
}
