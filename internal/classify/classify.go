// Package classify labels inbound emails as job-application events.
//
// A deterministic keyword filter runs first; emails it cannot decide with
// high confidence go to a language model. Classification never writes anything.
package classify

import (
	"context"
	"log"
	"strings"

	"github.com/jonathan/job-tracker/internal/types"
)

// Classifier assigns a label to a single email.
type Classifier interface {
	Classify(ctx context.Context, raw types.RawEmail) (types.Classification, error)
}

// Config tunes the classification pipeline.
type Config struct {
	// KeywordConfidence is reported for unambiguous keyword matches
	KeywordConfidence float64
	// MinKeywordConfidence is the level a keyword match needs to skip the model
	MinKeywordConfidence float64
	// MinBodyChars: bodies shorter than this are not sent to the model
	MinBodyChars int
}

// DefaultConfig returns the standard classification settings.
func DefaultConfig() Config {
	return Config{
		KeywordConfidence:    0.95,
		MinKeywordConfidence: 0.9,
		MinBodyChars:         20,
	}
}

// Pipeline combines the keyword filter with an optional model classifier.
type Pipeline struct {
	keywords *KeywordFilter
	model    Classifier
	cfg      Config
}

// NewPipeline creates a classification pipeline. model may be nil, in which case
// anything the keyword filter cannot decide is labeled unknown.
func NewPipeline(model Classifier, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.KeywordConfidence <= 0 {
		cfg.KeywordConfidence = def.KeywordConfidence
	}
	if cfg.MinKeywordConfidence <= 0 {
		cfg.MinKeywordConfidence = def.MinKeywordConfidence
	}
	if cfg.MinBodyChars <= 0 {
		cfg.MinBodyChars = def.MinBodyChars
	}
	return &Pipeline{
		keywords: NewKeywordFilter(cfg.KeywordConfidence),
		model:    model,
		cfg:      cfg,
	}
}

// Classify never fails: model errors degrade to an unknown label with zero
// confidence and Failed set. Near-empty bodies are unknown before any keyword check.
func (p *Pipeline) Classify(ctx context.Context, raw types.RawEmail) (types.Classification, error) {
	if len(strings.TrimSpace(raw.Body)) < p.cfg.MinBodyChars {
		return fallback("empty or near-empty body"), nil
	}

	if match, ok := p.keywords.Match(raw.Subject, raw.Body); ok && !match.Ambiguous &&
		p.keywords.Confidence() >= p.cfg.MinKeywordConfidence {
		c := types.Classification{
			Label:      match.Label,
			Confidence: p.keywords.Confidence(),
			Company:    extractCompany(raw),
			JobTitle:   extractTitle(raw),
			Location:   extractLocation(raw),
			Sentiment:  sentimentFor(match.Label),
			Source:     types.SourceKeyword,
			Reason:     "matched phrase \"" + match.Phrase + "\"",
		}
		return requireCompany(raw, c), nil
	}

	if p.model == nil {
		return fallback("no model configured"), nil
	}

	c, err := p.model.Classify(ctx, raw)
	if err != nil {
		log.Printf("[classify] Model classification failed for %s: %v", raw.MessageID, err)
		c := fallback("model unavailable: " + err.Error())
		c.Failed = true
		return c, nil
	}

	if c.Company == "" && c.Label.IsJobRelated() {
		c.Company = extractCompany(raw)
	}
	if c.JobTitle == "" && c.Label.IsJobRelated() {
		c.JobTitle = extractTitle(raw)
	}
	return requireCompany(raw, c), nil
}

// requireCompany relabels job-related results with no employer signal at all.
func requireCompany(raw types.RawEmail, c types.Classification) types.Classification {
	if !c.Label.IsJobRelated() || hasCompanySignal(raw, c) {
		return c
	}
	c.Label = types.LabelNotJobRelated
	c.Reason = strings.TrimSpace(c.Reason + "; no company signal")
	return c
}

func fallback(reason string) types.Classification {
	return types.Classification{
		Label:      types.LabelUnknown,
		Confidence: 0,
		Sentiment:  types.SentimentNeutral,
		Source:     types.SourceFallback,
		Reason:     reason,
	}
}
