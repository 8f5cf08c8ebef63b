// Package score provides the pure relevance-scoring functions used to rank
// retrieval candidates: embedding cosine similarity, topic overlap, intent
// matching, and stopword-filtered keyword overlap, combined into one
// composite score per candidate.
//
// Embedding similarity is the primary signal; the remaining signals only
// perturb ranking with small additive bonuses. When no embeddings are
// available the keyword fallback path keeps selection degrading gracefully
// instead of silently returning nothing.
package score

import "math"

// Weights controls the composite combination. Embedding similarity must
// dominate; the other signals are small additive bonuses.
type Weights struct {
	Embedding float64 `yaml:"embedding"`
	Topic     float64 `yaml:"topic"`
	Intent    float64 `yaml:"intent"`
	Keyword   float64 `yaml:"keyword"`
}

// DefaultWeights mirrors the tuning the pipeline ships with. The exact
// constants are a policy choice, not a contract.
var DefaultWeights = Weights{
	Embedding: 0.7,
	Topic:     0.1,
	Intent:    0.1,
	Keyword:   0.1,
}

// highValueKeywords get an extra boost on the keyword-only fallback path.
// They mark durable personal attributes worth surfacing even with weak
// lexical overlap.
var highValueKeywords = map[string]struct{}{
	"name": {}, "job": {}, "work": {}, "live": {}, "from": {},
	"education": {}, "school": {}, "hobby": {}, "interest": {},
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for mismatched or empty vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Breakdown holds the sub-scores computed for one candidate. It is
// ephemeral: annotated during one context-assembly call and discarded.
type Breakdown struct {
	EmbeddingSimilarity float64
	TopicMatch          float64
	IntentMatch         float64
	KeywordMatch        float64
	Composite           float64
}

// Composite scores a candidate text against a query using the full signal
// set. embeddingSim is the precomputed cosine similarity between the query
// and candidate embeddings (vector indexes return it with each match); pass
// 0 when unavailable, though callers without embeddings should prefer
// KeywordFallback. Empty texts score 0 and never panic.
func Composite(query, candidate string, embeddingSim float64, w Weights) Breakdown {
	var b Breakdown
	if query == "" || candidate == "" {
		return b
	}

	b.EmbeddingSimilarity = embeddingSim
	b.TopicMatch = TopicOverlap(query, candidate)
	b.KeywordMatch = JaccardText(query, candidate)

	// Flat bonus when both sides share the same non-general intent.
	qi, ci := ClassifyIntent(query), ClassifyIntent(candidate)
	if qi == ci && qi != IntentGeneral {
		b.IntentMatch = 1.0
	}

	b.Composite = w.Embedding*b.EmbeddingSimilarity +
		w.Topic*b.TopicMatch +
		w.Intent*b.IntentMatch +
		w.Keyword*b.KeywordMatch
	return b
}

// KeywordFallback scores a candidate without embeddings: token-set Jaccard
// plus +0.2 per high-value keyword present in both texts.
func KeywordFallback(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}

	qs, cs := TokenSet(query), TokenSet(candidate)
	s := Jaccard(qs, cs)
	for kw := range highValueKeywords {
		if _, inQ := qs[kw]; !inQ {
			continue
		}
		if _, inC := cs[kw]; inC {
			s += 0.2
		}
	}
	return s
}
