package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ClassificationPreamble(t *testing.T) {
	ClearCache()

	prompt, err := Get("classification.json", "classify-email-preamble")
	require.NoError(t, err)
	assert.Contains(t, prompt, "application_rejection")
	assert.Contains(t, prompt, "not_job_related")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("classification.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestFormat(t *testing.T) {
	result := Format("Hello {{.Name}}, welcome to {{.Company}}!", map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	})
	assert.Equal(t, "Hello Alice, welcome to Acme Corp!", result)
}

func TestFormat_ValuesAreNotReexpanded(t *testing.T) {
	result := Format("{{.Subject}} / {{.Body}}", map[string]string{
		"Subject": "{{.Body}}",
		"Body":    "text",
	})
	assert.Equal(t, "{{.Body}} / text", result)
}

func TestFormat_EmptyData(t *testing.T) {
	assert.Equal(t, "Hello {{.Name}}", Format("Hello {{.Name}}", map[string]string{}))
}

func TestRender_EmailInput(t *testing.T) {
	ClearCache()

	out, err := Render("classification.json", "classify-email-input", map[string]string{
		"SenderName":  "Acme Recruiting",
		"SenderEmail": "jobs@acme.com",
		"ReceivedAt":  "2024-05-01",
		"Subject":     "Your application",
		"Body":        "Thanks for applying",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "From: Acme Recruiting <jobs@acme.com>")
	assert.Contains(t, out, "Subject: Your application")
	assert.NotContains(t, out, "{{.")
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List("classification.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"classify-email-input", "classify-email-preamble"}, keys)
}

func TestCaching(t *testing.T) {
	ClearCache()

	prompt1, err := Get("classification.json", "classify-email-input")
	require.NoError(t, err)
	prompt2, err := Get("classification.json", "classify-email-input")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
