// Package matching implements the catalog matching and estimation engine:
// text normalization, synonym expansion, fuzzy scoring, ranking, match
// resolution with article deduplication, and time aggregation.
//
// The engine performs no storage I/O itself. Candidate records are obtained
// through the CatalogRetriever interface.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// yoFolder folds the one accented letter variant the catalog treats as equal
// to its base letter.
var yoFolder = strings.NewReplacer("ё", "е")

// Normalize canonicalizes text for comparison: trimmed, lowercased, "ё" folded
// to "е", every run of characters that are neither word characters nor
// whitespace replaced by a single space, whitespace collapsed, trimmed again.
//
// Normalize never fails and is idempotent. An empty result is a valid value
// that matches nothing.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	// cases.Caser is stateful and must not be shared across goroutines.
	text = cases.Lower(language.Und).String(text)
	text = yoFolder.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		if !isWordRune(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// tokens splits normalized text on whitespace.
func tokens(s string) []string {
	return strings.Fields(s)
}

// tokenSet returns the distinct tokens of s.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
