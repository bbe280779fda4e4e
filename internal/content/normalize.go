package content

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// normalizeWords trims, NFC-normalizes and drops blanks and case-insensitive duplicates.
func normalizeWords(words []string) []string {
	folder := cases.Fold() // a Caser is stateful; one per call
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = norm.NFC.String(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		key := folder.String(w)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

// Category title-cases a free-text topic for display, defaulting when blank.
func Category(topic string) string {
	topic = strings.Join(strings.Fields(topic), " ")
	if topic == "" {
		return "General Fun"
	}
	return cases.Title(language.English).String(norm.NFC.String(topic))
}
