// Package filter rejects retrieval candidates that would make the clone
// echo the incoming message back: near-duplicates of the query, canned
// email openers, and responses previously flagged as bad examples.
//
// Everything here is a pure function of its inputs. No I/O, no state:
// running a check twice on the same input yields the same verdict.
package filter

import (
	"strings"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/score"
)

// DefaultThreshold is the Jaccard similarity above which a candidate is
// considered a repeat of the query.
const DefaultThreshold = 0.8

// emailThresholdFactor tightens the threshold for email: email responses
// must be less repetitive than text responses to pass.
const emailThresholdFactor = 0.8

// ackOpeners are canned email acknowledgment openers. A candidate starting
// with one of these, followed by words echoing the query's opening, is a
// templated reply rather than a useful style example.
var ackOpeners = []string{
	"thank you for",
	"thanks for",
	"i appreciate",
	"i received your",
	"regarding your",
	"in response to",
	"in regards to",
	"i hope this email",
}

// Acceptable runs the rejection rules in order against one candidate.
// First match wins: a false return means the candidate never reaches
// ranking. channel adjusts the repetition threshold and enables the email
// acknowledgment rule.
func Acceptable(candidate *core.Message, query string, channel core.Channel) bool {
	// Rule 1: prior user feedback rejected this response.
	if candidate.BadExample {
		return false
	}

	// Rule 2: email acknowledgment opener echoing the query's opening.
	if channel == core.ChannelEmail && echoesAckOpener(candidate.Text, query) {
		return false
	}

	// Rule 3: a contiguous 5-token window of the query appears verbatim
	// in the candidate.
	if containsVerbatimWindow(query, candidate.Text, 5) {
		return false
	}

	// Rule 4: overall token overlap above the channel-adjusted threshold.
	threshold := DefaultThreshold
	if channel == core.ChannelEmail {
		threshold *= emailThresholdFactor
	}
	if TooSimilar(query, candidate.Text, threshold, false) {
		return false
	}

	// Rule 5: any long query sentence appearing inside a candidate
	// sentence (near-verbatim echo split across punctuation).
	if sentenceEcho(query, candidate.Text) {
		return false
	}

	return true
}

// TooSimilar reports whether two texts overlap beyond threshold.
// In strict mode the verbatim-window check is applied as well, catching
// long shared runs that token-set Jaccard dilutes away.
func TooSimilar(a, b string, threshold float64, strict bool) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	if normalize(a) == normalize(b) {
		return true
	}
	if score.JaccardText(a, b) > threshold {
		return true
	}
	if strict && containsVerbatimWindow(a, b, 5) {
		return true
	}
	return false
}

// echoesAckOpener implements the email rule: candidate begins with a canned
// acknowledgment opener and the words after it substantially echo the
// query's opening words (prefix overlap on the first 3 tokens).
func echoesAckOpener(candidate, query string) bool {
	lower := strings.ToLower(strings.TrimSpace(candidate))

	for _, opener := range ackOpeners {
		if !strings.HasPrefix(lower, opener) {
			continue
		}

		rest := strings.Fields(strings.TrimPrefix(lower, opener))
		queryTokens := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
		if len(rest) == 0 || len(queryTokens) == 0 {
			continue
		}

		n := 3
		if len(rest) < n {
			n = len(rest)
		}
		if len(queryTokens) < n {
			n = len(queryTokens)
		}

		overlap := 0
		for i := 0; i < n; i++ {
			if trimToken(rest[i]) == trimToken(queryTokens[i]) {
				overlap++
			}
		}
		// Also treat the opener tail appearing anywhere in the query's
		// opening as an echo ("reaching out about the meeting ...").
		if overlap >= 2 || prefixContained(rest, queryTokens, n) {
			return true
		}
	}
	return false
}

// prefixContained reports whether the first n tokens after the opener all
// appear among the first 6 tokens of the query.
func prefixContained(rest, queryTokens []string, n int) bool {
	if n == 0 {
		return false
	}
	window := queryTokens
	if len(window) > 6 {
		window = window[:6]
	}
	head := make(map[string]struct{}, len(window))
	for _, t := range window {
		head[trimToken(t)] = struct{}{}
	}
	for i := 0; i < n; i++ {
		if _, ok := head[trimToken(rest[i])]; !ok {
			return false
		}
	}
	return true
}

// containsVerbatimWindow reports whether any contiguous run of size tokens
// from src appears verbatim (case-insensitive) inside dst.
func containsVerbatimWindow(src, dst string, size int) bool {
	srcTokens := strings.Fields(strings.ToLower(src))
	if len(srcTokens) < size {
		return false
	}
	dstLower := " " + normalize(dst) + " "

	for i := 0; i+size <= len(srcTokens); i++ {
		window := make([]string, size)
		for j := 0; j < size; j++ {
			window[j] = trimToken(srcTokens[i+j])
		}
		phrase := " " + strings.Join(window, " ") + " "
		if strings.Contains(dstLower, phrase) {
			return true
		}
	}
	return false
}

// sentenceEcho reports whether any sentence of query longer than 10 chars
// is a substring of any sentence of candidate.
func sentenceEcho(query, candidate string) bool {
	for _, qs := range splitSentences(query) {
		if len(qs) <= 10 {
			continue
		}
		for _, cs := range splitSentences(candidate) {
			if strings.Contains(cs, qs) {
				return true
			}
		}
	}
	return false
}

func splitSentences(text string) []string {
	parts := strings.Split(strings.ToLower(text), ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalize lowercases text and collapses token punctuation so window
// matching is insensitive to commas and casing.
func normalize(text string) string {
	tokens := strings.Fields(strings.ToLower(text))
	for i, t := range tokens {
		tokens[i] = trimToken(t)
	}
	return strings.Join(tokens, " ")
}

func trimToken(t string) string {
	return strings.Trim(t, ".,!?;:\"'")
}
