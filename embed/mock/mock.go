// Package mock provides a deterministic embedder for tests. No model
// files, no network.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"

	"github.com/doppelkit/clone-go-sdk/embed"
)

// Embedder generates deterministic embeddings by hashing tokens into a
// fixed-size bag-of-words vector. Texts sharing words get genuinely high
// cosine similarity, which is enough to exercise ranking and filtering
// without a real model.
type Embedder struct {
	dimensions int
	calls      atomic.Int64
	fail       atomic.Bool
}

// New creates a mock embedder with all-MiniLM-L6-v2 dimensions.
func New() *Embedder {
	return &Embedder{dimensions: 384}
}

// Embed creates a deterministic embedding from text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.fail.Load() {
		return nil, fmt.Errorf("mock outage: %w", embed.ErrUnavailable)
	}

	embedding := make([]float32, m.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		h := fnv.New64a()
		h.Write([]byte(word))
		seed := h.Sum64()

		// Spread each word over a few pseudo-random dimensions.
		for range [4]struct{}{} {
			seed = seed*6364136223846793005 + 1442695040888963407
			idx := int(seed % uint64(m.dimensions))
			embedding[idx] += 1.0
		}
	}

	return normalize(embedding), nil
}

// EmbedBatch embeds each text in order.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// Calls returns how many Embed calls were made. Tests assert on this to
// prove short-circuit paths never touch the provider.
func (m *Embedder) Calls() int {
	return int(m.calls.Load())
}

// SetFailing toggles simulated provider outage.
func (m *Embedder) SetFailing(fail bool) {
	m.fail.Store(fail)
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
