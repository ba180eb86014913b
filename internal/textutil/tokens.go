package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MinTokenRunes is the shortest token Tokenize keeps.
const MinTokenRunes = 3

// Normalize trims surrounding space and converts text to NFC so keys typed on
// different platforms compare byte-for-byte.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Fold returns the Unicode case-folded, NFC form of text.
func Fold(text string) string {
	return cases.Fold().String(Normalize(text))
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}

// Tokenize splits text on anything that is not a letter or digit, folds case,
// and drops tokens shorter than MinTokenRunes runes. Digit runs such as
// "2024" are kept.
func Tokenize(text string) []string {
	folded := Fold(text)
	raw := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		if utf8.RuneCountInString(token) < MinTokenRunes {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		terms = append(terms, token)
	}
	return terms
}
