// Package index defines the vector index contract used for message
// history retrieval. The index stores (id, vector, metadata) triples,
// namespaced per user; namespace isolation is a hard invariant enforced
// on every query and write.
package index

import (
	"context"
	"errors"

	"github.com/doppelkit/clone-go-sdk/core"
)

// ErrUnavailable indicates the index backend could not serve the request.
// The assembler degrades to memory-only context when it sees this.
var ErrUnavailable = errors.New("index: backend unavailable")

// ErrMissingNamespace is raised for operations without a user namespace.
var ErrMissingNamespace = errors.New("index: namespace is required")

// Item is one message plus its embedding, ready for upsert.
type Item struct {
	Vector  []float32
	Message core.Message
}

// Match is one ranked query result.
type Match struct {
	Message    core.Message
	Similarity float64
}

// Index is the vector storage backend interface.
// Implementations: chromem (embedded, local), or a remote store in
// production deployments.
type Index interface {
	// Upsert stores items in the user's namespace. Re-upserting an
	// existing ID replaces the entry, never duplicates it.
	Upsert(ctx context.Context, namespace string, items []Item) error

	// Query returns up to k matches ranked by similarity, highest first,
	// restricted to the namespace.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)

	// Scan returns up to limit stored messages from the namespace without
	// vector ranking. This is the keyword-fallback retrieval path for
	// when no embeddings are available.
	Scan(ctx context.Context, namespace string, limit int) ([]core.Message, error)

	// Delete removes the given IDs from the namespace.
	Delete(ctx context.Context, namespace string, ids []string) error

	// Close releases resources.
	Close() error
}
