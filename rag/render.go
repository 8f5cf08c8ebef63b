package rag

import (
	"fmt"
	"strings"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/memory"
	"github.com/doppelkit/clone-go-sdk/score"
)

// futureMarkers flip episodic phrasing from recalling to planning.
var futureMarkers = []string{
	"tomorrow", "will ", "next ", "planning", "going to", "soon",
	"later", "upcoming",
}

type renderInput struct {
	Query    string
	Examples []Candidate
	Memories memory.Result
	Channel  core.Channel
	MaxWords int
}

// render produces the final context block: past examples, memories phrased
// per tier, situational guidance, and channel directives, truncated to the
// word budget from the least important section up.
func render(in renderInput) string {
	examples := renderExamples(in.Examples)
	coreLines := phraseAll(in.Memories.Core, phraseCore)
	episodicLines := phraseAll(in.Memories.Episodic, phraseEpisodic)
	archivalLines := phraseAll(in.Memories.Archival, phraseArchival)
	guidance := renderGuidance(in.Query)
	directives := channelDirectives(in.Channel)

	assemble := func(withArchival, withEpisodic bool, exampleCount int) string {
		var b strings.Builder

		if exampleCount > 0 {
			b.WriteString("Past examples of how you reply:\n")
			for i, ex := range examples[:exampleCount] {
				b.WriteString(fmt.Sprintf("%d. %s\n", i+1, ex))
			}
			b.WriteString("\n")
		}

		memLines := append([]string{}, coreLines...)
		if withEpisodic {
			memLines = append(memLines, episodicLines...)
		}
		if withArchival {
			memLines = append(memLines, archivalLines...)
		}
		if len(memLines) > 0 {
			b.WriteString("What you know:\n")
			for _, line := range memLines {
				b.WriteString("- " + line + "\n")
			}
			b.WriteString("\n")
		}

		if len(guidance) > 0 {
			for _, line := range guidance {
				b.WriteString(line + "\n")
			}
			b.WriteString("\n")
		}

		b.WriteString(directives)
		return strings.TrimRight(b.String(), "\n") + "\n"
	}

	// Truncation order: archival first, then episodic memories, then
	// history examples from the bottom. Core memory and the current-turn
	// instructions are never cut.
	out := assemble(true, true, len(examples))
	if wordCount(out) <= in.MaxWords {
		return out
	}
	out = assemble(false, true, len(examples))
	if wordCount(out) <= in.MaxWords {
		return out
	}
	out = assemble(false, false, len(examples))
	for n := len(examples); n > 0 && wordCount(out) > in.MaxWords; n-- {
		out = assemble(false, false, n-1)
	}
	return out
}

// renderMinimal is the short static path for trivial turns and total
// retrieval outage.
func renderMinimal(channel core.Channel) string {
	return "Respond naturally and briefly.\n" + channelDirectives(channel)
}

func renderExamples(examples []Candidate) []string {
	out := make([]string, 0, len(examples))
	for _, ex := range examples {
		if ex.Message.Previous != "" {
			out = append(out, fmt.Sprintf("When they said %q you replied %q.",
				ex.Message.Previous, ex.Message.Text))
		} else {
			out = append(out, fmt.Sprintf("You once wrote %q.", ex.Message.Text))
		}
	}
	return out
}

func phraseAll(items []memory.Item, phrase func(string) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, phrase(it.Content))
	}
	return out
}

func phraseCore(content string) string {
	return "I know that " + content + "."
}

func phraseEpisodic(content string) string {
	lower := strings.ToLower(content)
	for _, marker := range futureMarkers {
		if strings.Contains(lower, marker) {
			return "I'm planning that " + content + "."
		}
	}
	return "I recall that " + content + "."
}

func phraseArchival(content string) string {
	return "I remember that " + content + "."
}

// renderGuidance emits short situational lines keyed off the detected
// intent and tone of the incoming message.
func renderGuidance(query string) []string {
	var lines []string

	switch score.ClassifyIntent(query) {
	case score.IntentQuestion:
		lines = append(lines, "This is a question; answer it helpfully and directly.")
	case score.IntentRequest:
		lines = append(lines, "This is a request; confirm what you'll do.")
	case score.IntentOpinion:
		lines = append(lines, "They're sharing an opinion; engage with it.")
	}

	switch score.DetectTone(query) {
	case score.ToneNegative:
		lines = append(lines, "The tone is negative; be empathetic.")
	case score.TonePositive:
		lines = append(lines, "The tone is positive; match the energy.")
	}

	return lines
}

func channelDirectives(channel core.Channel) string {
	switch channel {
	case core.ChannelEmail:
		return "Write this as an email: open with a greeting and close with your usual sign-off."
	case core.ChannelText:
		return "Keep the reply short and casual, like a text message."
	default:
		return "Match the tone and length of the incoming message."
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
