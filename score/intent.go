package score

import "strings"

// Intent is a coarse classification of what an utterance is doing.
type Intent string

const (
	IntentQuestion Intent = "question"
	IntentGreeting Intent = "greeting"
	IntentOpinion  Intent = "opinion"
	IntentRequest  Intent = "request"
	IntentGeneral  Intent = "general"
)

// Tone is a coarse emotional read of an utterance.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

var greetingWords = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {}, "howdy": {},
	"morning": {}, "evening": {}, "afternoon": {}, "sup": {},
}

var opinionMarkers = []string{
	"i think", "i feel", "i believe", "in my opinion", "i reckon",
	"personally",
}

var requestVerbs = map[string]struct{}{
	"please": {}, "send": {}, "give": {}, "tell": {}, "let": {},
	"help": {}, "make": {}, "call": {}, "book": {}, "remind": {},
	"check": {}, "find": {}, "get": {}, "schedule": {}, "forward": {},
}

var negativeWords = map[string]struct{}{
	"sad": {}, "angry": {}, "upset": {}, "sorry": {}, "terrible": {},
	"awful": {}, "frustrated": {}, "annoyed": {}, "worried": {},
	"stressed": {}, "hate": {}, "bad": {}, "unfortunately": {},
	"disappointed": {}, "tired": {}, "sick": {}, "hurt": {},
}

var positiveWords = map[string]struct{}{
	"great": {}, "awesome": {}, "happy": {}, "love": {}, "excited": {},
	"amazing": {}, "wonderful": {}, "fantastic": {}, "glad": {},
	"thanks": {}, "perfect": {}, "nice": {}, "congrats": {},
	"congratulations": {}, "excellent": {},
}

// ClassifyIntent assigns one intent class to a text using simple marker
// rules. Order matters: a greeting with a question mark is a question.
func ClassifyIntent(text string) Intent {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return IntentGeneral
	}
	lower := strings.ToLower(trimmed)

	if strings.Contains(lower, "?") {
		return IntentQuestion
	}

	tokens := Tokenize(lower)
	if len(tokens) > 0 {
		if _, ok := greetingWords[tokens[0]]; ok {
			return IntentGreeting
		}
	}

	for _, marker := range opinionMarkers {
		if strings.Contains(lower, marker) {
			return IntentOpinion
		}
	}

	// Imperative request: leading request verb, or "can/could you ..."
	if len(tokens) > 0 {
		if _, ok := requestVerbs[tokens[0]]; ok {
			return IntentRequest
		}
	}
	if strings.HasPrefix(lower, "can you") || strings.HasPrefix(lower, "could you") ||
		strings.HasPrefix(lower, "would you") {
		return IntentRequest
	}

	return IntentGeneral
}

// DetectTone assigns a coarse tone by counting marker words.
func DetectTone(text string) Tone {
	neg, pos := 0, 0
	for _, tok := range Tokenize(text) {
		if _, ok := negativeWords[tok]; ok {
			neg++
		}
		if _, ok := positiveWords[tok]; ok {
			pos++
		}
	}

	switch {
	case neg > pos:
		return ToneNegative
	case pos > neg:
		return TonePositive
	default:
		return ToneNeutral
	}
}

// IsGreeting reports whether query is a bare greeting: an exact match
// against the fixed greeting list after trimming, case-insensitive.
func IsGreeting(query string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(query))
	trimmed = strings.TrimRight(trimmed, "!.")
	_, ok := greetingWords[trimmed]
	if ok {
		return true
	}
	switch trimmed {
	case "good morning", "good evening", "good afternoon", "what's up", "whats up":
		return true
	}
	return false
}
