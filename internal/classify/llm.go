package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/job-tracker/internal/llm"
	"github.com/jonathan/job-tracker/internal/prompts"
	"github.com/jonathan/job-tracker/internal/retry"
	"github.com/jonathan/job-tracker/internal/schemas"
	"github.com/jonathan/job-tracker/internal/textnorm"
	"github.com/jonathan/job-tracker/internal/types"
)

const (
	promptFile = "classification.json"

	// defaultModelConfidence is used when the model omits confidence_score
	defaultModelConfidence = 0.75
)

// LLMOptions configures model-backed classification.
type LLMOptions struct {
	Tier         llm.ModelTier
	Timeout      time.Duration // per call
	Attempts     int
	Backoff      time.Duration
	MaxBodyChars int
}

// DefaultLLMOptions returns the options used when none are given.
func DefaultLLMOptions() LLMOptions {
	return LLMOptions{
		Tier:         llm.TierLite,
		Timeout:      30 * time.Second,
		Attempts:     3,
		Backoff:      time.Second,
		MaxBodyChars: 2000,
	}
}

// LLMClassifier classifies emails with a language model.
type LLMClassifier struct {
	client llm.Client
	opts   LLMOptions
}

// NewLLMClassifier creates a classifier over the given client.
func NewLLMClassifier(client llm.Client, opts LLMOptions) *LLMClassifier {
	defaults := DefaultLLMOptions()
	if opts.Tier == "" {
		opts.Tier = defaults.Tier
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaults.Backoff
	}
	if opts.MaxBodyChars <= 0 {
		opts.MaxBodyChars = defaults.MaxBodyChars
	}
	return &LLMClassifier{client: client, opts: opts}
}

// modelResponse mirrors email_classification.schema.json
type modelResponse struct {
	EmailType       string   `json:"email_type"`
	ConfidenceScore *float64 `json:"confidence_score"`
	CompanyName     *string  `json:"company_name"`
	JobTitle        *string  `json:"job_title"`
	Location        *string  `json:"location"`
	Sentiment       *string  `json:"sentiment"`
	Reasoning       *string  `json:"reasoning"`
}

// Classify asks the model for a label. Transient failures are retried;
// anything still failing is returned as a *ClassificationError.
func (c *LLMClassifier) Classify(ctx context.Context, raw types.RawEmail) (types.Classification, error) {
	prompt, err := c.buildPrompt(raw)
	if err != nil {
		return types.Classification{}, &ClassificationError{MessageID: raw.MessageID, Message: "failed to build prompt", Cause: err}
	}

	var text string
	policy := retry.Policy{
		Attempts:  c.opts.Attempts,
		Backoff:   c.opts.Backoff,
		Retryable: llm.IsTransient,
		Label:     "classify " + raw.MessageID,
	}
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
		var callErr error
		text, callErr = c.client.GenerateJSON(callCtx, prompt, c.opts.Tier)
		return callErr
	})
	if err != nil {
		return types.Classification{}, &ClassificationError{MessageID: raw.MessageID, Message: "model call failed", Cause: err}
	}

	result, err := parseModelResponse(text)
	if err != nil {
		return types.Classification{}, &ClassificationError{MessageID: raw.MessageID, Message: "invalid model response", Cause: err}
	}
	return result, nil
}

func (c *LLMClassifier) buildPrompt(raw types.RawEmail) (string, error) {
	preamble, err := prompts.Get(promptFile, "classify-email-preamble")
	if err != nil {
		return "", err
	}
	input, err := prompts.Render(promptFile, "classify-email-input", map[string]string{
		"SenderName":  raw.SenderName,
		"SenderEmail": raw.SenderEmail,
		"ReceivedAt":  raw.ReceivedAt.UTC().Format(time.RFC3339),
		"Subject":     raw.Subject,
		"Body":        textnorm.Truncate(strings.TrimSpace(raw.Body), c.opts.MaxBodyChars),
	})
	if err != nil {
		return "", err
	}
	return llm.BuildExtractionPrompt(llm.EmailClassificationSchema(preamble), input), nil
}

// parseModelResponse validates the JSON against the schema and converts it.
func parseModelResponse(text string) (types.Classification, error) {
	cleaned := llm.CleanJSONBlock(text)
	if err := schemas.Validate(schemas.EmailClassification, []byte(cleaned)); err != nil {
		return types.Classification{}, err
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return types.Classification{}, fmt.Errorf("failed to parse classification: %w", err)
	}

	label, err := types.ParseLabel(resp.EmailType)
	if err != nil {
		return types.Classification{}, err
	}

	confidence := defaultModelConfidence
	if resp.ConfidenceScore != nil {
		confidence = *resp.ConfidenceScore
	}

	return types.Classification{
		Label:      label,
		Confidence: types.ClampConfidence(confidence),
		Company:    deref(resp.CompanyName),
		JobTitle:   deref(resp.JobTitle),
		Location:   deref(resp.Location),
		Sentiment:  types.ParseSentiment(deref(resp.Sentiment)),
		Source:     types.SourceLLM,
		Reason:     deref(resp.Reasoning),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
