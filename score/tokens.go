package score

import (
	"strings"
	"unicode"
)

// stopwords are excluded from token-overlap scoring. Keeping the list short
// and conversational matters more than linguistic completeness here.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "can": {}, "did": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {},
	"her": {}, "him": {}, "his": {}, "how": {}, "i": {}, "if": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "just": {}, "me": {},
	"my": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "she": {}, "so": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "they": {}, "this": {},
	"to": {}, "up": {}, "us": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "would": {}, "you": {},
	"your": {},
}

// Tokenize splits text into lowercase word tokens, dropping punctuation
// and single-character fragments.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})

	result := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && len(word) > 1 {
			result = append(result, word)
		}
	}
	return result
}

// TokenSet returns the stopword-filtered token set of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity of two token sets.
// Returns 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate over the smaller set
	if len(a) > len(b) {
		a, b = b, a
	}

	intersect := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersect++
		}
	}

	union := len(a) + len(b) - intersect
	if union == 0 {
		return 0
	}
	return float64(intersect) / float64(union)
}

// JaccardText is Jaccard over the stopword-filtered token sets of two texts.
func JaccardText(a, b string) float64 {
	return Jaccard(TokenSet(a), TokenSet(b))
}
