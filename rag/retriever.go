package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/embed"
	"github.com/doppelkit/clone-go-sdk/index"
	"github.com/doppelkit/clone-go-sdk/score"
)

// Candidate is one retrieved message annotated with its sub-scores for
// the current query. Candidates live for a single context-assembly call.
type Candidate struct {
	Message core.Message
	Scores  score.Breakdown
}

// Retriever finds raw candidates for a query. Variants are chosen at
// construction time, never by swapping method implementations at runtime.
type Retriever interface {
	Retrieve(ctx context.Context, userID, query string) ([]Candidate, error)
}

// VectorRetriever retrieves candidates by embedding the query and running
// a nearest-neighbor search. Retrieval failure of the embedding provider
// surfaces as embed.ErrUnavailable so the caller can switch to the
// keyword variant.
type VectorRetriever struct {
	provider embed.Provider
	idx      index.Index
	limit    int
	weights  score.Weights
}

// NewVectorRetriever creates the embedding-based retriever.
func NewVectorRetriever(provider embed.Provider, idx index.Index, limit int, w score.Weights) *VectorRetriever {
	return &VectorRetriever{provider: provider, idx: idx, limit: limit, weights: w}
}

// Retrieve embeds the query and returns the nearest stored messages with
// full composite scores.
func (r *VectorRetriever) Retrieve(ctx context.Context, userID, query string) ([]Candidate, error) {
	candidates, _, err := r.RetrieveWithVector(ctx, userID, query)
	return candidates, err
}

// RetrieveWithVector additionally returns the query embedding, which the
// assembler reuses for batch memory scoring within the same request.
func (r *VectorRetriever) RetrieveWithVector(ctx context.Context, userID, query string) ([]Candidate, []float32, error) {
	vector, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.idx.Query(ctx, userID, vector, r.limit)
	if err != nil {
		return nil, vector, fmt.Errorf("index query: %w", err)
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, Candidate{
			Message: m.Message,
			Scores:  score.Composite(query, m.Message.Text, m.Similarity, r.weights),
		})
	}
	return candidates, vector, nil
}

// KeywordRetriever is the degraded-mode variant: it scans stored messages
// and ranks them by keyword overlap only. Slower and cruder, but it keeps
// retrieval alive when no embeddings can be produced.
type KeywordRetriever struct {
	idx       index.Index
	scanLimit int
	limit     int
}

// NewKeywordRetriever creates the keyword fallback retriever.
func NewKeywordRetriever(idx index.Index, scanLimit, limit int) *KeywordRetriever {
	return &KeywordRetriever{idx: idx, scanLimit: scanLimit, limit: limit}
}

// Retrieve scans the namespace and keeps the best keyword matches.
func (r *KeywordRetriever) Retrieve(ctx context.Context, userID, query string) ([]Candidate, error) {
	messages, err := r.idx.Scan(ctx, userID, r.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("index scan: %w", err)
	}

	candidates := make([]Candidate, 0, len(messages))
	for _, msg := range messages {
		s := score.KeywordFallback(query, msg.EmbeddingText())
		if s <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Message: msg,
			Scores:  score.Breakdown{KeywordMatch: s, Composite: s},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Scores.Composite > candidates[j].Scores.Composite
	})
	if len(candidates) > r.limit {
		candidates = candidates[:r.limit]
	}
	return candidates, nil
}
