// Package llm - extractor.go provides schema-driven structured extraction prompts.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "EmailClassification")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "\"string\""
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Base every field on the text, do not invent company names or job titles.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// EmailClassificationSchema returns the extraction schema for job-application emails.
// The preamble is supplied by the caller so prompt wording lives with the other prompts.
func EmailClassificationSchema(preamble string) ExtractionSchema {
	return ExtractionSchema{
		Name:        "EmailClassification",
		Description: preamble,
		Fields: []SchemaField{
			{
				Name:        "email_type",
				Type:        `"application_confirmation" | "application_rejection" | "interview_invitation" | "offer_letter" | "status_update" | "not_job_related"`,
				Description: "Category of the email",
				Required:    true,
			},
			{
				Name:        "confidence_score",
				Type:        "number",
				Description: "Certainty between 0.0 and 1.0",
				Required:    true,
			},
			{
				Name:        "company_name",
				Type:        "\"string\" | null",
				Description: "Hiring company, not the applicant tracking system vendor",
			},
			{
				Name:        "job_title",
				Type:        "\"string\" | null",
				Description: "Position title exactly as written",
			},
			{
				Name:        "location",
				Type:        "\"string\" | null",
				Description: "Job location if stated",
			},
			{
				Name:        "sentiment",
				Type:        `"positive" | "neutral" | "negative"`,
				Description: "Overall tone toward the applicant",
			},
			{
				Name:        "reasoning",
				Type:        "\"string\"",
				Description: "One sentence explaining the classification",
			},
		},
	}
}
