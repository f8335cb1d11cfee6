package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sanitizer removes every HTML element from user text and normalises it to NFC.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a sanitizer backed by a strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize strips markup, decodes entities the policy escaped and collapses runs of spaces
// while keeping line breaks.
func (s *Sanitizer) Sanitize(input string) string {
	if input == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(input))
	cleaned = norm.NFC.String(cleaned)
	lines := strings.Split(strings.ReplaceAll(cleaned, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Fold lowercases s and strips diacritics so "Robe Été" matches "robe ete".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
