package query

import (
	"strings"
	"unicode"
)

// Length bounds for normalized queries.
const (
	MaxSearchQueryLen       = 200
	MaxAutocompleteQueryLen = 100
)

// Normalize cleans a raw query string: markup and control characters are
// stripped, runs of whitespace collapse to a single space, the result is
// trimmed and rune-truncated to limit. A limit of 0 or less disables
// truncation. Normalize is pure; an empty result is valid and means
// "browse without a text query".
func Normalize(raw string, limit int) string {
	cleaned := stripMarkup(raw)

	var b strings.Builder
	b.Grow(len(cleaned))
	pendingSpace := false
	for _, r := range cleaned {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if limit > 0 {
		runes := []rune(out)
		if len(runes) > limit {
			out = strings.TrimRight(string(runes[:limit]), " ")
		}
	}
	return out
}

// NormalizeAggregate is the coarser transform used for popularity keying:
// lowercase, trim, and collapse whitespace, with no truncation. Distinct
// spellings like "RTX 4090" and "rtx 4090 " map to the same aggregate key.
func NormalizeAggregate(raw string) string {
	return strings.ToLower(Normalize(raw, 0))
}

// Tokenize splits a normalized query into lowercase terms.
func Tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}

// stripMarkup removes angle-bracketed tag content from the input. Unclosed
// tags drop the remainder of the string, which matches how user-pasted HTML
// fragments should be treated in a search box.
func stripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			if inTag {
				inTag = false
				// Tag boundaries act as separators.
				b.WriteByte(' ')
			} else {
				b.WriteRune(r)
			}
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
