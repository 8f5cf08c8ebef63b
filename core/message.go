package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Sender identifies who produced an utterance.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderClone Sender = "clone"
	SenderOther Sender = "other"
)

// Channel identifies the conversation medium. Channel affects repetition
// thresholds and the formatting directives appended to assembled context.
type Channel string

const (
	ChannelText    Channel = "text"
	ChannelEmail   Channel = "email"
	ChannelDefault Channel = "default"
)

// ParseChannel normalizes a raw channel string, falling back to ChannelDefault.
func ParseChannel(s string) Channel {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelText:
		return ChannelText
	case ChannelEmail:
		return ChannelEmail
	default:
		return ChannelDefault
	}
}

// Message is one retrievable unit of conversational history: a stored
// response together with the utterance it replied to.
type Message struct {
	// ID is derived from content via ContentID, so re-ingesting identical
	// text is idempotent (upsert semantics, never a duplicate entry).
	ID string

	// Text is the stored utterance (usually a response).
	Text string

	// Previous is the utterance Text replied to. May be empty.
	Previous string

	Sender    Sender
	Channel   Channel
	Timestamp time.Time

	// Source is a provenance tag: "imessage", "email", "manual".
	Source string

	// BadExample marks a response rejected by prior user feedback.
	// Flagged messages are excluded from retrieval unconditionally.
	BadExample bool
}

// Turn is one entry of short conversation history passed to the assembler.
type Turn struct {
	Role      Sender
	Text      string
	Timestamp time.Time
}

// Fact is a durable attribute about the user (name, occupation, ...).
// Facts are created by extraction or explicit API call and are never
// auto-deleted.
type Fact struct {
	Category string
	Text     string
}

// ContentID derives a stable message ID from its text content.
// Identical previous/text pairs always map to the same ID.
func ContentID(previous, text string) string {
	h := sha256.Sum256([]byte(previous + "\x00" + text))
	return hex.EncodeToString(h[:16])
}

// EmbeddingText returns the text to embed for retrieval. Including the
// replied-to utterance lets a new incoming message match stored responses
// by the prompt they answered, not only by the response wording.
func (m *Message) EmbeddingText() string {
	if m.Previous == "" {
		return m.Text
	}
	return m.Previous + "\n" + m.Text
}

// Validate reports whether the message is usable as a retrieval candidate.
// Validation happens at the ingestion boundary so downstream scoring can
// rely on field presence.
func (m *Message) Validate() bool {
	return m.ID != "" && strings.TrimSpace(m.Text) != ""
}
