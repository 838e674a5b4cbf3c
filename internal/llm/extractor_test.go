package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt_EmailClassification(t *testing.T) {
	schema := EmailClassificationSchema("You classify job application emails.")
	prompt := BuildExtractionPrompt(schema, "Subject: Your application\n\nThanks for applying.")

	assert.Contains(t, prompt, "You classify job application emails.")
	assert.Contains(t, prompt, `"email_type": "application_confirmation"`)
	assert.Contains(t, prompt, `"confidence_score": number (required)`)
	assert.Contains(t, prompt, "// Hiring company")
	assert.Contains(t, prompt, "Thanks for applying.")
	assert.Contains(t, prompt, "Return ONLY valid JSON")
}

func TestBuildExtractionPrompt_DefaultTypeHint(t *testing.T) {
	schema := ExtractionSchema{
		Description: "d",
		Fields:      []SchemaField{{Name: "a"}, {Name: "b", Required: true}},
	}
	prompt := BuildExtractionPrompt(schema, "x")

	assert.Contains(t, prompt, `"a": "string",`)
	assert.Contains(t, prompt, `"b": "string" (required)`)
}
