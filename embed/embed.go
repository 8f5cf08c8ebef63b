// Package embed defines the embedding provider contract and a caching
// wrapper. Implementations live in subpackages: openai (API-based), onnx
// (local all-MiniLM-L6-v2, behind the onnx build tag), and mock
// (deterministic, for tests).
//
// Embedding failure is signalled with ErrUnavailable and is fatal for the
// vector path of the current request. Callers must not substitute a zero
// vector (that would corrupt similarity rankings); they fall back to
// keyword matching instead.
package embed

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider could not serve the
// request (outage, timeout). Wrap it so callers can detect the condition
// with errors.Is and switch to the keyword fallback path.
var ErrUnavailable = errors.New("embed: provider unavailable")

// Provider converts text to fixed-length dense vectors. Identical text
// must map to identical vectors: cosine similarity with itself ~ 1.0.
type Provider interface {
	// Embed converts a single text to a vector of Dimensions() length.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts in one round-trip where the
	// backend supports it. Result order matches input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
