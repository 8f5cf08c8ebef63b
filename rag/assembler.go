package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/embed"
	"github.com/doppelkit/clone-go-sdk/filter"
	"github.com/doppelkit/clone-go-sdk/index"
	"github.com/doppelkit/clone-go-sdk/memory"
	"github.com/doppelkit/clone-go-sdk/score"
)

// ErrMissingUser is raised when a call arrives without a user ID.
// This is the one error class the assembler surfaces: proceeding without
// a namespace would risk cross-user data leakage.
var ErrMissingUser = errors.New("rag: user id is required")

// MemoryStore is the slice of the tiered memory store the assembler needs.
type MemoryStore interface {
	Add(userID string, tier memory.Tier, content string) (memory.Item, error)
	List(userID string, tier memory.Tier) ([]memory.Item, error)
	GetRelevant(userID, query string, fn memory.ScoreFunc) (memory.Result, error)
}

// Assembler builds bounded context blocks from the vector index and the
// tiered memory store. Safe for concurrent use; per-call state never
// escapes the call.
type Assembler struct {
	provider embed.Provider // nil disables the vector path entirely
	idx      index.Index
	mem      MemoryStore
	cfg      *Config
	log      *logrus.Entry

	vector  *VectorRetriever // nil when provider is nil
	keyword *KeywordRetriever

	// bad holds message IDs rejected by user feedback, per user. The flag
	// overlays retrieved candidates before filtering.
	badMu sync.RWMutex
	bad   map[string]map[string]struct{}
}

// NewAssembler wires the pipeline. provider may be nil to force keyword
// mode; cfg may be nil for defaults.
func NewAssembler(provider embed.Provider, idx index.Index, mem MemoryStore, cfg *Config) *Assembler {
	if cfg == nil {
		cfg = DefaultConfig
	} else {
		cfg.applyDefaults()
	}
	a := &Assembler{
		provider: provider,
		idx:      idx,
		mem:      mem,
		cfg:      cfg,
		log:      logrus.WithField("component", "rag"),
		bad:      make(map[string]map[string]struct{}),
	}
	if provider != nil {
		a.vector = NewVectorRetriever(provider, idx, cfg.CandidateLimit, cfg.Weights)
	}
	a.keyword = NewKeywordRetriever(idx, cfg.ScanLimit, cfg.CandidateLimit)
	return a
}

// BuildContext produces the formatted context block for one incoming
// message. It degrades through keyword matching, memory-only context, and
// finally static channel instructions; it never fails for transient
// dependency errors. history is advisory and may be nil.
func (a *Assembler) BuildContext(ctx context.Context, query string, history []core.Turn, channel core.Channel, userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUser
	}

	// Trivial turns get no retrieved content at all: injecting memories
	// into "hi" pollutes the prompt for nothing. Malformed (empty) input
	// takes this path too, not an error.
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || score.IsGreeting(trimmed) || len(strings.Fields(trimmed)) <= 3 {
		return renderMinimal(channel), nil
	}

	log := a.log.WithFields(logrus.Fields{"user_id": userID, "channel": channel})

	candidates, queryVec, vectorMode := a.retrieve(ctx, log, userID, trimmed)
	examples := a.selectExamples(candidates, trimmed, channel, userID)

	memResult, memOK := a.retrieveMemories(ctx, log, userID, trimmed, queryVec, vectorMode)

	if len(examples) == 0 && !memOK {
		// Everything is down. Availability beats completeness: the caller
		// still gets usable (if generic) instructions.
		log.Warn("degraded: all retrieval sources unavailable, static instructions only")
		return renderMinimal(channel), nil
	}

	block := render(renderInput{
		Query:    trimmed,
		Examples: examples,
		Memories: memResult,
		Channel:  channel,
		MaxWords: a.cfg.MaxWords,
	})
	return block, nil
}

// retrieve runs the vector retriever, falling back to keyword retrieval
// when embeddings are unavailable. Returns the candidates, the query
// vector when one was produced, and whether vector mode was used.
func (a *Assembler) retrieve(ctx context.Context, log *logrus.Entry, userID, query string) ([]Candidate, []float32, bool) {
	if a.vector != nil {
		candidates, queryVec, err := a.vector.RetrieveWithVector(ctx, userID, query)
		if err == nil {
			return candidates, queryVec, true
		}
		if queryVec != nil {
			// The embedding exists; only the index is down. Memory can
			// still be vector-scored.
			log.WithError(err).Warn("degraded: vector index unreachable, memory-only context")
			return nil, queryVec, true
		}
		if errors.Is(err, embed.ErrUnavailable) {
			log.WithError(err).Warn("degraded: embedding provider unavailable, keyword mode")
		} else {
			log.WithError(err).Warn("degraded: embedding failed, keyword mode")
		}
	}

	candidates, err := a.keyword.Retrieve(ctx, userID, query)
	if err != nil {
		log.WithError(err).Warn("degraded: keyword retrieval unavailable, memory-only context")
		return nil, nil, false
	}
	return candidates, nil, false
}

// selectExamples applies the repetition filter, ranks survivors, and
// keeps the top few above the score floor.
func (a *Assembler) selectExamples(candidates []Candidate, query string, channel core.Channel, userID string) []Candidate {
	a.badMu.RLock()
	flagged := a.bad[userID]
	a.badMu.RUnlock()

	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := flagged[c.Message.ID]; ok {
			c.Message.BadExample = true
		}
		if !filter.Acceptable(&c.Message, query, channel) {
			continue
		}
		if c.Scores.Composite < a.cfg.MinExampleScore {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Scores.Composite > kept[j].Scores.Composite
	})
	if len(kept) > a.cfg.ExampleLimit {
		kept = kept[:a.cfg.ExampleLimit]
	}
	return kept
}

// retrieveMemories queries the tiered store with a scoring closure
// appropriate to the current mode. In vector mode all item contents are
// embedded in one batched call and scored by cosine similarity; in
// keyword mode the fallback score applies.
func (a *Assembler) retrieveMemories(ctx context.Context, log *logrus.Entry, userID, query string, queryVec []float32, vectorMode bool) (memory.Result, bool) {
	var scoreFn memory.ScoreFunc

	if vectorMode && queryVec != nil {
		if sims := a.batchMemorySimilarity(ctx, log, userID, queryVec); sims != nil {
			w := a.cfg.Weights
			scoreFn = func(content string) float64 {
				if sim, ok := sims[content]; ok {
					return score.Composite(query, content, sim, w).Composite
				}
				return score.KeywordFallback(query, content)
			}
		}
	}
	if scoreFn == nil {
		scoreFn = func(content string) float64 {
			return score.KeywordFallback(query, content)
		}
	}

	result, err := a.mem.GetRelevant(userID, query, scoreFn)
	if err != nil {
		log.WithError(err).Warn("degraded: memory store unreachable")
		return memory.Result{}, false
	}
	return result, true
}

// batchMemorySimilarity embeds every memory content in one provider call
// and returns content -> cosine similarity against the query vector.
// Returns nil when listing or embedding fails; callers fall back to
// keyword scoring.
func (a *Assembler) batchMemorySimilarity(ctx context.Context, log *logrus.Entry, userID string, queryVec []float32) map[string]float64 {
	var contents []string
	for _, tier := range []memory.Tier{memory.TierCore, memory.TierEpisodic, memory.TierArchival} {
		items, err := a.mem.List(userID, tier)
		if err != nil {
			return nil
		}
		for _, it := range items {
			contents = append(contents, it.Content)
		}
	}
	if len(contents) == 0 {
		return map[string]float64{}
	}

	vecs, err := a.provider.EmbedBatch(ctx, contents)
	if err != nil {
		log.WithError(err).Debug("batch memory embedding failed, keyword scoring")
		return nil
	}

	sims := make(map[string]float64, len(contents))
	for i, content := range contents {
		sims[content] = score.CosineSimilarity(queryVec, vecs[i])
	}
	return sims
}

// RecordInteraction upserts a produced query/response pair into the
// vector index for future retrieval. The ID derives from content, so
// recording the same exchange twice never duplicates it.
func (a *Assembler) RecordInteraction(ctx context.Context, query, response string, channel core.Channel, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(response) == "" {
		return nil
	}

	msg := core.Message{
		ID:        core.ContentID(query, response),
		Text:      response,
		Previous:  query,
		Sender:    core.SenderClone,
		Channel:   channel,
		Timestamp: time.Now().UTC(),
		Source:    "conversation",
	}

	var vector []float32
	if a.provider != nil {
		vec, err := a.provider.Embed(ctx, msg.EmbeddingText())
		if err != nil {
			// Without a vector the pair is invisible to nearest-neighbor
			// search; recording it would corrupt similarity rankings.
			// Keyword retrieval picks it up next time it is recorded.
			a.log.WithError(err).Warn("skip recording: embedding unavailable")
			return nil
		}
		vector = vec
	}
	if vector == nil {
		a.log.Warn("skip recording: no embedding provider configured")
		return nil
	}

	if err := a.idx.Upsert(ctx, userID, []index.Item{{Vector: vector, Message: msg}}); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// Ingest upserts historical messages (iMessage, email exports) into the
// user's namespace. Invalid records are skipped, not fatal; embeddings
// are produced in one batched call.
func (a *Assembler) Ingest(ctx context.Context, userID string, messages []core.Message) error {
	if userID == "" {
		return ErrMissingUser
	}
	if a.provider == nil {
		return fmt.Errorf("ingest: %w", embed.ErrUnavailable)
	}

	valid := make([]core.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID == "" {
			m.ID = core.ContentID(m.Previous, m.Text)
		}
		if !m.Validate() {
			a.log.WithField("source", m.Source).Debug("skipping invalid message")
			continue
		}
		valid = append(valid, m)
	}
	if len(valid) == 0 {
		return nil
	}

	texts := make([]string, len(valid))
	for i, m := range valid {
		texts[i] = m.EmbeddingText()
	}
	vecs, err := a.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingest embeddings: %w", err)
	}

	items := make([]index.Item, len(valid))
	for i, m := range valid {
		items[i] = index.Item{Vector: vecs[i], Message: m}
	}
	if err := a.idx.Upsert(ctx, userID, items); err != nil {
		return fmt.Errorf("ingest upsert: %w", err)
	}
	return nil
}

// MarkBadExample flags a stored response as rejected by user feedback.
// Flagged responses are excluded from every later context build.
func (a *Assembler) MarkBadExample(userID, messageID string) {
	a.badMu.Lock()
	defer a.badMu.Unlock()
	if a.bad[userID] == nil {
		a.bad[userID] = make(map[string]struct{})
	}
	a.bad[userID][messageID] = struct{}{}
}

// AddFact stores a durable user fact. Explicit facts (API-supplied) go to
// core; facts extracted from conversation go to episodic.
func (a *Assembler) AddFact(userID string, fact core.Fact, explicit bool) (memory.Item, error) {
	if userID == "" {
		return memory.Item{}, ErrMissingUser
	}

	content := fact.Text
	if fact.Category != "" {
		content = fact.Category + ": " + fact.Text
	}

	tier := memory.TierEpisodic
	if explicit {
		tier = memory.TierCore
	}
	return a.mem.Add(userID, tier, content)
}
