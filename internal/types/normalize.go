package types

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeDomain returns the canonical key for a site domain: NFC, lower
// case, no surrounding whitespace or trailing dot
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimSuffix(d, ".")
	return cases.Lower(language.Und).String(norm.NFC.String(d))
}

// NormalizeTags canonicalizes journal tags and drops duplicates and blanks,
// keeping first-seen order
func NormalizeTags(tags []string) []string {
	// Casers are stateful and cannot be shared between goroutines
	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		t := lower.String(norm.NFC.String(strings.TrimSpace(tag)))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
