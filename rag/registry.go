package rag

import (
	"context"
	"sync"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/memory"
)

// Registry hands out per-user sessions, created lazily on first use.
// Construct one at process start and pass it to request handlers; it
// replaces the hidden global per-user cache pattern with an explicit
// object.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	assembler *Assembler
}

// NewRegistry creates a registry over one shared assembler.
func NewRegistry(assembler *Assembler) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		assembler: assembler,
	}
}

// GetOrCreate returns the session for a user, creating it on first call.
func (r *Registry) GetOrCreate(userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s, nil
	}
	s := &Session{userID: userID, asm: r.assembler}
	r.sessions[userID] = s
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Session binds the assembler to one user namespace. All operations are
// scoped to that user; sessions for different users can run concurrently
// without coordination.
type Session struct {
	userID string
	asm    *Assembler
}

// UserID returns the bound user namespace.
func (s *Session) UserID() string {
	return s.userID
}

// BuildContext assembles the context block for an incoming message.
func (s *Session) BuildContext(ctx context.Context, query string, history []core.Turn, channel core.Channel) (string, error) {
	return s.asm.BuildContext(ctx, query, history, channel, s.userID)
}

// RecordInteraction stores a produced exchange for future retrieval.
func (s *Session) RecordInteraction(ctx context.Context, query, response string, channel core.Channel) error {
	return s.asm.RecordInteraction(ctx, query, response, channel, s.userID)
}

// Ingest loads historical messages into the user's namespace.
func (s *Session) Ingest(ctx context.Context, messages []core.Message) error {
	return s.asm.Ingest(ctx, s.userID, messages)
}

// MarkBadExample flags a stored response as rejected by user feedback.
func (s *Session) MarkBadExample(messageID string) {
	s.asm.MarkBadExample(s.userID, messageID)
}

// AddFact stores a durable fact about the user. Explicit facts go to the
// core tier, extracted ones to episodic.
func (s *Session) AddFact(fact core.Fact, explicit bool) (memory.Item, error) {
	return s.asm.AddFact(s.userID, fact, explicit)
}
