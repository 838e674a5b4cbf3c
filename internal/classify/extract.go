package classify

import (
	"regexp"
	"strings"

	"github.com/jonathan/job-tracker/internal/textnorm"
	"github.com/jonathan/job-tracker/internal/types"
)

const capWords = `([A-Z][A-Za-z0-9&'\-]*(?:\s+[A-Z][A-Za-z0-9&'\-]*){0,3})`

var (
	companyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:applying|application|interest|applied)\s+(?:to|at|with)\s+` + capWords),
		regexp.MustCompile(`\b(?:at|from|join|joining)\s+` + capWords),
	}

	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:position|role)\s+of\s+([A-Za-z][A-Za-z0-9 /&+\-]{2,60})`),
		regexp.MustCompile(`(?i)\b(?:for|the)\s+([A-Za-z][A-Za-z0-9 /&+\-]{2,60}?)\s+(?:position|role|opening|opportunity)\b`),
		regexp.MustCompile(`(?i)\bapplication\s+for\s+(?:the\s+)?([A-Za-z][A-Za-z0-9 /&+\-]{2,60}?)(?:\s+(?:at|with)\s+|\s+-\s+|[.,!:\n]|$)`),
	}

	locationPattern = regexp.MustCompile(`(?:[Ll]ocation|based in|located in|office in)\s*:?\s+([A-Z][A-Za-z.'\-]*(?:\s+[A-Z][A-Za-z.'\-]*){0,2}(?:,\s*[A-Z]{2})?)`)

	// leadIns are cut from the front of a lazily matched title
	leadIns = []string{" for the ", " for ", " the ", " as ", " our "}

	// tails end a greedily matched title ("Staff Engineer at Acme")
	tails = []string{" at ", " with ", " in ", " - "}
)

// notCompanies are capitalised words the company patterns pick up at sentence starts.
var notCompanies = map[string]bool{
	"this": true, "the": true, "our": true, "your": true, "we": true, "a": true,
	"unfortunately": true, "thank": true, "thanks": true, "regards": true, "best": true,
	"this time": true, "hiring": true,
}

// extractCompany finds the hiring company in the text or the sender metadata.
func extractCompany(raw types.RawEmail) string {
	for _, text := range []string{raw.Subject, raw.Body} {
		for _, re := range companyPatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				candidate := strings.TrimRight(strings.TrimSpace(m[1]), ".,!'-")
				if candidate != "" && !notCompanies[strings.ToLower(candidate)] {
					return candidate
				}
			}
		}
	}
	return senderCompany(raw)
}

// senderCompany derives a company from the display name or the sender domain.
func senderCompany(raw types.RawEmail) string {
	if c := textnorm.CompanyFromDisplayName(raw.SenderName); c != "" {
		return c
	}
	return textnorm.DomainLabel(raw.SenderEmail)
}

// extractTitle finds a position title such as "Backend Engineer".
func extractTitle(raw types.RawEmail) string {
	for _, text := range []string{raw.Subject, raw.Body} {
		for _, re := range titlePatterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			title := " " + strings.TrimSpace(m[1])
			for _, lead := range leadIns {
				if idx := strings.LastIndex(strings.ToLower(title), lead); idx >= 0 {
					title = " " + title[idx+len(lead):]
				}
			}
			for _, tail := range tails {
				if idx := strings.Index(strings.ToLower(title), tail); idx > 0 {
					title = title[:idx]
				}
			}
			title = strings.TrimSpace(title)
			if len(title) >= 3 {
				return title
			}
		}
	}
	return ""
}

// extractLocation finds an explicitly stated job location.
func extractLocation(raw types.RawEmail) string {
	for _, text := range []string{raw.Subject, raw.Body} {
		if m := locationPattern.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if strings.Contains(strings.ToLower(raw.Subject+" "+raw.Body), "fully remote") {
		return "Remote"
	}
	return ""
}

// hasCompanySignal reports whether anything ties the email to an employer.
func hasCompanySignal(raw types.RawEmail, c types.Classification) bool {
	return strings.TrimSpace(c.Company) != "" || senderCompany(raw) != ""
}
