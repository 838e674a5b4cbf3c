// Package textnorm normalises company names, sender addresses and free text
// so the classifier and matcher compare like with like.
package textnorm

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9&\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// legalSuffixes are stripped from the end of company names, longest first.
var legalSuffixes = []string{
	" & co",
	" corporation",
	" incorporated",
	" company",
	" limited",
	" gmbh",
	" corp",
	" inc",
	" llc",
	" ltd",
	" plc",
	" co",
}

// CollapseWhitespace trims s and squeezes internal whitespace runs to one space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// NormalizeCompany lower-cases a company name, removes punctuation and legal suffixes.
// "Acme Corp." and "ACME, Inc" both become "acme".
func NormalizeCompany(name string) string {
	s := strings.ToLower(CollapseWhitespace(name))
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ".", " ")
	s = CollapseWhitespace(s)

	for changed := true; changed; {
		changed = false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
				changed = true
			}
		}
	}

	s = nonAlnum.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", " ")
	return CollapseWhitespace(s)
}

// NormalizeText lower-cases text and reduces it to alphanumeric tokens separated by single spaces.
func NormalizeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	return CollapseWhitespace(sb.String())
}

// Tokens returns the distinct normalised tokens of s, skipping stop words.
func Tokens(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(NormalizeText(s)) {
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "for": true,
	"to": true, "in": true, "at": true, "on": true, "with": true, "or": true,
}

// ParseSender splits a From header into display name and lower-cased address.
// Unparseable input is returned as the address.
func ParseSender(from string) (name, address string) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", strings.ToLower(strings.Trim(strings.TrimSpace(from), "<>"))
	}
	return strings.TrimSpace(addr.Name), strings.ToLower(addr.Address)
}

// Domain returns the lower-cased domain part of an email address.
func Domain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

// freeMailDomains never identify an employer.
var freeMailDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "outlook.com": true,
	"hotmail.com": true, "live.com": true, "icloud.com": true, "me.com": true,
	"aol.com": true, "proton.me": true, "protonmail.com": true, "gmx.com": true,
}

// atsDomains belong to applicant tracking systems and job boards, not employers.
var atsDomains = map[string]bool{
	"greenhouse.io": true, "greenhouse-mail.io": true, "lever.co": true,
	"myworkday.com": true, "workday.com": true, "smartrecruiters.com": true,
	"icims.com": true, "ashbyhq.com": true, "jobvite.com": true, "bamboohr.com": true,
	"taleo.net": true, "successfactors.com": true, "workable.com": true,
	"workablemail.com": true, "linkedin.com": true, "indeed.com": true,
	"indeedemail.com": true, "ziprecruiter.com": true, "glassdoor.com": true,
	"hire.lever.co": true, "breezy.hr": true, "recruitee.com": true,
}

// registrable returns the last two labels of a domain, or three for country
// second-level domains such as co.uk.
func registrable(domain string) (label, base string) {
	parts := strings.Split(strings.Trim(domain, "."), ".")
	if len(parts) < 2 {
		return "", ""
	}
	n := len(parts)
	if n >= 3 && len(parts[n-1]) == 2 {
		switch parts[n-2] {
		case "co", "com", "org", "net", "ac", "gov":
			return parts[n-3], strings.Join(parts[n-3:], ".")
		}
	}
	return parts[n-2], strings.Join(parts[n-2:], ".")
}

// IsGenericDomain reports whether a domain belongs to a free-mail or recruiting platform.
func IsGenericDomain(domain string) bool {
	_, base := registrable(domain)
	if base == "" {
		return true
	}
	return freeMailDomains[base] || atsDomains[base] || atsDomains[domain]
}

// DomainLabel returns the employer label of a sender address ("acme" for jobs@mail.acme.com),
// or "" when the domain is generic.
func DomainLabel(address string) string {
	domain := Domain(address)
	if domain == "" || IsGenericDomain(domain) {
		return ""
	}
	label, _ := registrable(domain)
	return label
}

// recruitingWords mark a display name as a company mailbox rather than a person.
var recruitingWords = map[string]bool{
	"recruiting": true, "recruitment": true, "recruiter": true, "careers": true,
	"career": true, "talent": true, "acquisition": true, "hiring": true, "team": true,
	"hr": true, "jobs": true, "people": true, "noreply": true, "no-reply": true,
	"notifications": true, "applications": true,
}

// CompanyFromDisplayName extracts a company from display names such as
// "Acme Recruiting" or "Acme Talent Acquisition Team". Names without any
// recruiting word are treated as people and yield "".
func CompanyFromDisplayName(name string) string {
	name = CollapseWhitespace(name)
	if idx := strings.Index(strings.ToLower(name), " via "); idx > 0 {
		name = name[:idx]
	}

	words := strings.Fields(name)
	kept := make([]string, 0, len(words))
	sawRecruiting := false
	for _, w := range words {
		lw := strings.ToLower(strings.Trim(w, ",.-|@"))
		if recruitingWords[lw] {
			sawRecruiting = true
			continue
		}
		if lw == "the" || lw == "at" || lw == "" {
			continue
		}
		kept = append(kept, strings.Trim(w, ",.-|@"))
	}
	if !sawRecruiting || len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
